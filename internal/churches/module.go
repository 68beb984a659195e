// Package churches provides the church directory bounded context module.
package churches

import (
	"lightchurch_backend/internal/churches/handler"
	"lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/internal/churches/service"
	"lightchurch_backend/internal/events"
	apphttp "lightchurch_backend/internal/http"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/validator"
)

// Module is the churches bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the churches module with all its dependencies.
func NewModule(
	repo repository.Store,
	sessions service.AddressSessions,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repo, sessions, eventBus, val, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "churches"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts church routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.V1.Group("/churches"))
	m.handler.RegisterRoutes(ctx.Protected.Group("/churches"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
