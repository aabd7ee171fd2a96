// Package audit records authentication events: registrations, logins and
// token verifications with their outcome and request context.
//
// Two sinks are provided. LogrusLogger writes events into the service log
// with audit=true; FileLogger appends newline-delimited JSON to
// <dir>/audit.log and rotates it by size.
//
//	logger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: "/var/log/badge"})
//	event := audit.NewEvent(r, audit.EventTypeLogin, audit.EventStatusFailure, false)
//	event.Email = req.Email
//	event.Reason = "invalid_credentials"
//	logger.Log(ctx, event)
//
// Passwords, tokens and password hashes are never part of an event.
package audit
