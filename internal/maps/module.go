package maps

import (
	"context"

	"lightchurch_backend/internal/events"
	apphttp "lightchurch_backend/internal/http"
	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/platform/httpkit"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/sse"
	"lightchurch_backend/platform/validator"
)

const (
	sourceProvider = events.AddressSourceProvider
	sourceManual   = events.AddressSourceManual
)

// Module wires the address lookup and address session HTTP routes.
type Module struct {
	handler  *Handler
	sessions *Sessions
	stream   *sse.Service
	limiter  *httpkit.IPRateLimiter
}

func NewModule(chain resolver.Lookuper, opts SessionOptions, val *validator.Validator, log *logger.Logger) *Module {
	opts.Logger = log
	opts.Validator = val
	stream := sse.New(log)
	sessions := NewSessions(chain, stream, opts)
	svc := NewService(chain, log)
	return &Module{
		handler:  NewHandler(svc, sessions, stream),
		sessions: sessions,
		stream:   stream,
		limiter:  httpkit.NewAddressRateLimiter(log),
	}
}

func (m *Module) Name() string {
	return "maps"
}

// Sessions exposes the registry to modules consuming resolved addresses.
func (m *Module) Sessions() *Sessions {
	return m.sessions
}

// Run expires idle sessions until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	defer m.stream.Close()
	return m.sessions.Run(ctx)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	lookup := ctx.Protected.Group("/maps")
	lookup.Use(m.limiter.RateLimit())
	lookup.GET("/address-lookup", m.handler.LookupAddress)

	// Session ids are unguessable and double as the capability, so the
	// routes work from EventSource which cannot send an Authorization header.
	sessions := ctx.V1.Group("/maps/sessions")
	sessions.Use(m.limiter.RateLimit())
	sessions.POST("", m.handler.CreateSession)
	sessions.GET("/:id", m.handler.GetSession)
	sessions.DELETE("/:id", m.handler.DeleteSession)
	sessions.PUT("/:id/query", m.handler.SetQuery)
	sessions.POST("/:id/select", m.handler.Select)
	sessions.POST("/:id/manual", m.handler.EnterManual)
	sessions.DELETE("/:id/manual", m.handler.ExitManual)
	sessions.POST("/:id/manual/submit", m.handler.SubmitManual)
	sessions.PUT("/:id/caller-error", m.handler.SetCallerError)
	sessions.GET("/:id/events", m.handler.Events())
}

var _ apphttp.Module = (*Module)(nil)
