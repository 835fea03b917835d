// Package housing provides the projects and housing units bounded context.
// Units are delivered once; posventa and incidences read units through it.
package housing

import (
	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/housing/handler"
	"techo_backend/internal/housing/repository"
	"techo_backend/internal/housing/service"
	apphttp "techo_backend/internal/http"
	"techo_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the housing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the housing module with all its dependencies.
func NewModule(pool *pgxpool.Pool, auth authz.Authorizer, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, auth, bus, log)
	return &Module{handler: handler.New(svc), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "housing"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts housing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/projects", m.handler.ListProjects)
	ctx.Protected.GET("/projects/:id/units", m.handler.ListUnits)
	ctx.Protected.GET("/housing-units/:id", m.handler.GetUnit)
	ctx.Protected.POST("/housing-units/:id/deliver", m.handler.Deliver)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
