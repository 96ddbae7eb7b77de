// Package http serves the check-in kiosk: a long lived scanning station that
// checks visitors in from the codes on their badges.
//
// The router exposes the following endpoints:
//   - POST /scan: checks in the visitor embedded in a scanned code. Body:
//     {"code"}. Response: {"message","visitor"}.
//   - GET or PUT /visitors/{id}/check-in: the URL carried by the code itself, so
//     phones that open the link check the visitor in directly.
//   - PUT /visitors/{id}/check-out: records the visitor leaving.
//   - DELETE /scans: starts a new scanning session, forgetting consumed codes.
//   - GET /healthz: liveness probe.
//   - GET /metrics: Prometheus exposition.
//
// Errors are returned as {"error_code","message"} where message is the
// operator facing text and error_code the stable error kind.
//
// Every kiosk route except /healthz and /metrics shares the per client rate
// limit. The kiosk acts with the operator's session and has no caller
// authentication of its own, so it must listen only on the scanner network.
package http
