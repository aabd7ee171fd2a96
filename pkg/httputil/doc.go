// Package httputil provides the small HTTP helpers shared by the API
// handlers and middleware.
//
// Every error reply is a JSON object with a single "error" field:
//
//	httputil.WriteBadRequest(w, "email is required")
//	httputil.WriteUnauthorized(w, "unauthenticated")
//
// WriteUnauthorized also sets "WWW-Authenticate: Bearer". WriteInternalError
// never echoes the underlying error to the client.
//
// Request helpers:
//
//	var req RegisterRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	token, ok := httputil.BearerToken(r)
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(httputil.MaxBodyBytes),
//	)(router)
package httputil
