// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

type views struct {
	home      *template.Template
	protected *template.Template
	errorPage *template.Template
}

type errorPage struct {
	Status     int
	StatusText string
	Message    string
}

func newViews() (*views, error) {
	const op = "server.newViews"
	parse := func(page string) (*template.Template, error) {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse %s: %w", op, page, err)
		}
		return t, nil
	}
	var v views
	var err error
	if v.home, err = parse("home.html"); err != nil {
		return nil, err
	}
	if v.protected, err = parse("protected.html"); err != nil {
		return nil, err
	}
	if v.errorPage, err = parse("error.html"); err != nil {
		return nil, err
	}
	return &v, nil
}

// render executes t into a buffer first, so a template failure never leaves
// a partial page behind.
func (s *Server) render(w http.ResponseWriter, status int, t *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("unable to render page", "template", t.Name(), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, s.views.errorPage, errorPage{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	})
}
