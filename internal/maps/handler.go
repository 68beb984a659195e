package maps

import (
	"context"
	"errors"
	"net/http"

	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/platform/apperr"
	"lightchurch_backend/platform/httpkit"
	"lightchurch_backend/platform/sse"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler exposes the address lookup and address session endpoints.
type Handler struct {
	svc      *Service
	sessions *Sessions
	stream   *sse.Service
}

func NewHandler(svc *Service, sessions *Sessions, stream *sse.Service) *Handler {
	return &Handler{svc: svc, sessions: sessions, stream: stream}
}

// LookupAddress handles GET /api/v1/maps/address-lookup?q=...
func (h *Handler) LookupAddress(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "query 'q' is required (min 3 chars)", nil)
		return
	}

	results, err := h.svc.SearchAddress(c.Request.Context(), req.Query)
	if errors.Is(err, context.Canceled) {
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, results)
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
			return
		}
	}

	s := h.sessions.Create(req.Query)
	httpkit.JSON(c, http.StatusCreated, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	httpkit.OK(c, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, mapSessionError(h.sessions.Delete(id))) {
		return
	}
	httpkit.NoContent(c)
}

func (h *Handler) SetQuery(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SetQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if httpkit.HandleError(c, mapSessionError(s.SetQuery(req.Query))) {
		return
	}
	httpkit.OK(c, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

func (h *Handler) Select(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	address, err := s.Select(*req.Index)
	if httpkit.HandleError(c, mapSessionError(err)) {
		return
	}
	httpkit.OK(c, ResolvedResponse{Source: sourceProvider, Address: address})
}

func (h *Handler) EnterManual(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, mapSessionError(s.EnterManual())) {
		return
	}
	httpkit.OK(c, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

func (h *Handler) ExitManual(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, mapSessionError(s.ExitManual())) {
		return
	}
	httpkit.OK(c, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

func (h *Handler) SubmitManual(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req resolver.ManualAddress
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	address, err := s.SubmitManual(req)
	if httpkit.HandleError(c, mapSessionError(err)) {
		return
	}
	httpkit.OK(c, ResolvedResponse{Source: sourceManual, Address: address})
}

func (h *Handler) SetCallerError(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req CallerErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	s.SetCallerError(req.Message)
	httpkit.OK(c, SessionResponse{ID: s.ID, Snapshot: s.Snapshot()})
}

// Events handles GET /api/v1/maps/sessions/:id/events. The stream opens with
// the current snapshot.
func (h *Handler) Events() gin.HandlerFunc {
	return h.stream.Handler(
		func(c *gin.Context) (uuid.UUID, bool) {
			s, ok := h.session(c)
			if !ok {
				return uuid.Nil, false
			}
			return s.ID, true
		},
		func(id uuid.UUID) (sse.Event, bool) {
			s, err := h.sessions.Get(id)
			if err != nil {
				return sse.Event{}, false
			}
			return sse.Event{Type: EventState, Data: s.Snapshot()}, true
		},
	)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id, ok := sessionID(c)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if httpkit.HandleError(c, mapSessionError(err)) {
		return nil, false
	}
	return s, true
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// mapSessionError turns registry and resolver errors into domain errors.
func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, resolver.ErrClosed):
		return apperr.NotFound("address session not found")
	case errors.Is(err, resolver.ErrManualEntryActive):
		return apperr.Conflict("manual entry is active")
	case errors.Is(err, resolver.ErrNotManualEntry):
		return apperr.Conflict("manual entry is not active")
	case errors.Is(err, resolver.ErrNoSuggestions):
		return apperr.Conflict("no suggestions to select from")
	case errors.Is(err, resolver.ErrInvalidSelection):
		return apperr.BadRequest("suggestion index out of range")
	default:
		return err
	}
}
