package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/httputil"
	"github.com/platinummonkey/badge/pkg/middleware"
	"github.com/platinummonkey/badge/pkg/observability"
	"github.com/platinummonkey/badge/pkg/records"
)

// createAsk handles POST /ask. The owner is the verified subject; any
// owner field in the body is ignored.
func (s *Server) createAsk(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		return
	}

	var req AskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var answer string
	if s.answerer != nil && req.Input != "" {
		var err error
		answer, err = s.answerer.Answer(r.Context(), req.Input)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("answerer failed, storing record without an answer")
			answer = ""
		}
	}

	record, err := s.records.Create(r.Context(), identity.Subject, records.KindAsk, req.Input, answer)
	if err != nil {
		if errors.Is(err, auth.ErrMalformed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		s.writeServiceError(w, r, err, "failed to create record")
		return
	}

	httputil.WriteCreated(w, record)
}

// listAsks handles GET /ask
func (s *Server) listAsks(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", records.DefaultListLimit)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	list, err := s.records.ListByOwner(r.Context(), identity.Subject, limit)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list records")
		return
	}

	httputil.WriteSuccess(w, AskListResponse{Records: list, Count: len(list)})
}
