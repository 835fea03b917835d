// Package incidences provides the incidence lifecycle bounded context:
// reporting, claim and assignment, status transitions, comments with
// evidence and technician routing.
package incidences

import (
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	apphttp "techo_backend/internal/http"
	"techo_backend/internal/incidences/domain"
	"techo_backend/internal/incidences/handler"
	"techo_backend/internal/incidences/repository"
	"techo_backend/internal/incidences/service"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the incidences bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Deps are the collaborators the incidences module needs from the rest of the app.
type Deps struct {
	Pool        *pgxpool.Pool
	Users       authz.Directory
	Housing     service.HousingReader
	Store       evidence.Store
	Bus         events.Bus
	Policy      domain.Policy
	VisitWindow time.Duration
	Validator   *validator.Validator
	Log         *logger.Logger
}

// NewModule creates and initializes the incidences module with all its dependencies.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	svc := service.New(repo, deps.Users, deps.Housing, deps.Store, deps.Bus, deps.Policy, deps.VisitWindow, deps.Log)
	return &Module{handler: handler.New(svc, deps.Validator), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "incidences"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts incidence routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/incidences")
	g.POST("", m.handler.Report)
	g.GET("", m.handler.List)
	g.GET("/:id", m.handler.Get)
	g.GET("/:id/history", m.handler.History)
	g.POST("/:id/claim", m.handler.Claim)
	g.POST("/:id/assign", m.handler.Assign)
	g.PATCH("/:id/status", m.handler.UpdateStatus)
	g.POST("/:id/comments", m.handler.AddComment)
	g.GET("/:id/comments", m.handler.ListComments)
	g.POST("/:id/media", m.handler.AttachMedia)
	g.GET("/:id/media", m.handler.ListMedia)

	ctx.Protected.GET("/technicians/available", m.handler.ListAvailableTechnicians)
	ctx.Protected.GET("/technicians/:id/suggested-visits", m.handler.SuggestedVisits)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
