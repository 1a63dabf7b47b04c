// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capweb is a web application whose protected pages require an OIDC login
// with an Auth0 style provider.
//
// The packages are layered bottom-up:
//   - oidc: the relying party side of the authorization code flow (discovery,
//     auth URL, code exchange with PKCE, ID token verification, userinfo and
//     the provider's logout URL)
//   - session: per-browser sessions holding the logged in user's claims, in a
//     signed and encrypted cookie or in Redis
//   - config: the process configuration, read from the environment
//   - server: the http routes and the RequireAuth guard
//
// The capweb command in cmd/capweb wires them together.
package capweb
