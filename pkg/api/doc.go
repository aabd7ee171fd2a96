// Package api serves badge's HTTP interface on gorilla/mux.
//
// Routes:
//
//	POST /auth/register      create an account, 201 with a session
//	POST /auth/login         exchange email and password for a bearer token
//	POST /auth/verify-token  report whether a token is valid and whose it is
//	GET  /auth/me            the account behind the bearer token
//	POST /ask                store a record owned by the caller
//	GET  /ask                list the caller's records
//	GET  /health[/live|/ready], GET /metrics
//
// Every protected route runs behind middleware.AuthMiddleware, so handlers
// only see requests whose token passed verification. Rejections are a bare
// 401 with {"error":"unauthenticated"}; the reason is logged and counted,
// never returned. The credential routes share a per-IP rate limit when a
// limiter is configured.
//
// Server is built from Options and is an http.Handler:
//
//	srv, err := api.NewServer(api.Options{
//		Authenticator: service,
//		Verifier:      verifier,
//		Records:       records.NewStore(db),
//		Logger:        logger,
//	})
package api
