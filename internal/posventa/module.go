// Package posventa provides the post-delivery review workflow: forms move
// from borrador to enviada to revisada and carry plan documents.
package posventa

import (
	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	apphttp "techo_backend/internal/http"
	"techo_backend/internal/posventa/handler"
	"techo_backend/internal/posventa/repository"
	"techo_backend/internal/posventa/service"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the posventa bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Deps are the collaborators the posventa module needs.
type Deps struct {
	Pool      *pgxpool.Pool
	Auth      authz.Authorizer
	Housing   service.HousingReader
	Plans     evidence.Store
	Converter service.PlanConverter
	Queue     service.ConversionQueue
	Bus       events.Bus
	Validator *validator.Validator
	Log       *logger.Logger
}

// NewModule creates and initializes the posventa module with all its dependencies.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	svc := service.New(repo, deps.Auth, deps.Housing, deps.Plans, deps.Converter, deps.Queue, deps.Bus, deps.Log)
	return &Module{handler: handler.New(svc, deps.Validator), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "posventa"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts posventa routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/posventa")
	g.POST("/forms", m.handler.Create)
	g.GET("/forms", m.handler.List)
	g.GET("/forms/:id", m.handler.Get)
	g.POST("/forms/:id/submit", m.handler.Submit)
	g.POST("/forms/:id/review", m.handler.Review)
	g.POST("/forms/:id/plans", m.handler.AttachPlan)
	g.GET("/plans/:planId", m.handler.GetPlan)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
