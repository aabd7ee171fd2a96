package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/audit"
	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/httputil"
	"github.com/platinummonkey/badge/pkg/middleware"
	"github.com/platinummonkey/badge/pkg/observability"
)

const clientSideLoginMessage = "User registered successfully. Sign in with the identity provider to obtain a token."

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.metrics.ObserveRegistration(observability.ResultBadRequest)
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	session, err := s.authenticator.Register(r.Context(), req.Email, req.Password, req.Name())
	if err != nil {
		s.recordAuth(r, audit.EventTypeRegister, audit.EventStatusFailure, "", req.Email, failureReason(err))
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			s.metrics.ObserveRegistration(observability.ResultDuplicate)
			httputil.WriteConflict(w, auth.ErrDuplicateEmail.Error())
		case errors.Is(err, auth.ErrMalformed):
			s.metrics.ObserveRegistration(observability.ResultBadRequest)
			httputil.WriteBadRequest(w, err.Error())
		default:
			s.metrics.ObserveRegistration(observability.ResultError)
			s.writeServiceError(w, r, err, "registration failed")
		}
		return
	}

	s.metrics.ObserveRegistration(observability.ResultSuccess)
	s.recordAuth(r, audit.EventTypeRegister, audit.EventStatusSuccess, session.User.ID, session.User.Email, "")
	observability.FromContext(r.Context()).WithField("user_id", session.User.ID).Info("user registered")
	httputil.WriteCreated(w, s.sessionResponse(session))
}

// login handles POST /auth/login. Unknown email and wrong password get the
// same response.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.metrics.ObserveLogin(observability.ResultBadRequest)
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	session, err := s.authenticator.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordAuth(r, audit.EventTypeLogin, audit.EventStatusFailure, "", req.Email, failureReason(err))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.ObserveLogin(observability.ResultInvalid)
			httputil.WriteUnauthorized(w, auth.ErrInvalidCredentials.Error())
			return
		}
		s.metrics.ObserveLogin(observability.ResultError)
		s.writeServiceError(w, r, err, "login failed")
		return
	}

	s.metrics.ObserveLogin(observability.ResultSuccess)
	s.recordAuth(r, audit.EventTypeLogin, audit.EventStatusSuccess, session.User.ID, session.User.Email, "")
	httputil.WriteSuccess(w, s.sessionResponse(session))
}

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		return
	}

	user, err := s.authenticator.Me(r.Context(), identity)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			httputil.WriteErrorMessage(w, http.StatusNotFound, "user not found")
		case errors.Is(err, auth.ErrUnauthenticated):
			httputil.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		default:
			s.writeServiceError(w, r, err, "failed to load user")
		}
		return
	}

	httputil.WriteSuccess(w, newUserResponse(user))
}

// verifyToken handles POST /auth/verify-token. The token may come in the
// JSON body or, for older clients, as the token query parameter.
func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if token := r.URL.Query().Get("token"); token != "" {
		req.Token = token
	} else if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Token == "" {
		s.metrics.ObserveTokenVerification(observability.ResultMissing)
		httputil.WriteJSON(w, http.StatusUnauthorized, VerifyTokenResponse{Valid: false})
		return
	}

	identity, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		gate := auth.Gate(err)
		s.metrics.ObserveTokenVerification(gate)
		entry := observability.FromContext(r.Context()).WithField("gate", gate)
		if gate == "error" {
			entry.WithError(err).Error("token verification failed")
		} else {
			entry.Info("token rejected")
		}
		s.recordAuth(r, audit.EventTypeTokenVerify, audit.EventStatusDenied, "", "", gate)
		httputil.WriteJSON(w, http.StatusUnauthorized, VerifyTokenResponse{Valid: false})
		return
	}

	s.metrics.ObserveTokenVerification(observability.ResultSuccess)
	s.recordAuth(r, audit.EventTypeTokenVerify, audit.EventStatusSuccess, identity.Subject, identity.Email, "")
	httputil.WriteSuccess(w, VerifyTokenResponse{Valid: true, User: newTokenUser(identity)})
}

func (s *Server) sessionResponse(session *auth.Session) SessionResponse {
	resp := SessionResponse{
		TokenType: session.TokenType,
		User:      newUserResponse(session.User),
	}
	if resp.TokenType == "" {
		resp.TokenType = auth.TokenTypeBearer
	}
	if session.AccessToken == "" {
		resp.Message = clientSideLoginMessage
		return resp
	}
	s.metrics.ObserveTokenIssued()
	resp.AccessToken = session.AccessToken
	resp.ExpiresIn = session.ExpiresIn(s.now())
	return resp
}

// writeServiceError maps errors that are not the caller's fault. Details
// stay in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	entry := observability.FromContext(r.Context()).WithError(err)
	switch {
	case errors.Is(err, auth.ErrUnsupported):
		entry.Info(msg)
		httputil.WriteNotImplemented(w, auth.ErrUnsupported.Error())
	default:
		entry.WithFields(logrus.Fields{"status": http.StatusInternalServerError}).Error(msg)
		httputil.WriteInternalError(w)
	}
}

func (s *Server) recordAuth(r *http.Request, eventType audit.EventType, status audit.EventStatus, subject, email, reason string) {
	event := audit.NewEvent(r, eventType, status, s.trustProxy)
	event.Subject = subject
	event.Email = email
	event.Reason = reason
	if err := s.audit.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to write audit event")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrMalformed):
		return "malformed"
	case errors.Is(err, auth.ErrUnsupported):
		return "unsupported"
	default:
		return "error"
	}
}
