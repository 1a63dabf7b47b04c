// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "capweb"

type metrics struct {
	logins          prometheus.Counter
	loginFailures   *prometheus.CounterVec
	loginsEvicted   prometheus.Counter
	unauthorized    prometheus.Counter
	protectedAccess prometheus.Counter
	logouts         prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	const op = "server.newMetrics"
	m := &metrics{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Number of completed logins.",
		}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "login_failures_total",
			Help:      "Number of failed login callbacks by reason.",
		}, []string{"reason"}),
		loginsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "login_attempts_evicted_total",
			Help:      "Number of pending login attempts evicted to make room for new ones.",
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unauthorized_total",
			Help:      "Number of requests for protected pages without a session.",
		}),
		protectedAccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protected_access_total",
			Help:      "Number of protected pages served.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logouts_total",
			Help:      "Number of logouts.",
		}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.loginFailures, m.loginsEvicted, m.unauthorized, m.protectedAccess, m.logouts} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: unable to register collector: %w", op, err)
		}
	}
	return m, nil
}
