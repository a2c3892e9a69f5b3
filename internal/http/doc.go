// Package http provides HTTP handlers and middleware for the appointment API.
//
// The router exposes three surfaces:
//   - Public endpoints under /api/public plus /api/login and /api/setup: the
//     provider directory, topic listings, slot search, the booking wizard, and
//     token based cancellation. No authentication is required.
//   - Provider endpoints under /api: availability rules, time off, topics,
//     and received bookings for the authenticated principal, plus /api/me for
//     profile access. A bearer token issued by /api/login is required.
//   - Administrator endpoints under /api/admin: user accounts, departments,
//     batch rules, and global settings. These require an administrator token.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
