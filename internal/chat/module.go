// Package chat provides the visitor-session bounded context module: the
// session close protocol, staff queue assignment, and the HTTP surface over
// both.
package chat

import (
	"support_portal_backend/internal/chat/handler"
	"support_portal_backend/internal/chat/repository"
	"support_portal_backend/internal/chat/service"
	apphttp "support_portal_backend/internal/http"
	"support_portal_backend/platform/logger"
	"support_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the chat bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the chat module. The bus is the messaging
// collaborator, the trigger enqueues queue-trigger tasks (nil disables them).
func NewModule(pool *pgxpool.Pool, bus service.Bus, trigger service.QueueTrigger, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, trigger, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "chat"
}

// Service returns the service layer for external use (the queue-trigger
// worker and the fallback scheduler wiring).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts chat routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/chat"))
}
