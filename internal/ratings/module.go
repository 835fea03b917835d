// Package ratings provides the rating ledger: one rating per resolved
// incidence and the technician ranking built from them.
package ratings

import (
	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	apphttp "techo_backend/internal/http"
	"techo_backend/internal/ratings/handler"
	"techo_backend/internal/ratings/repository"
	"techo_backend/internal/ratings/service"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the ratings bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the ratings module with all its dependencies.
func NewModule(pool *pgxpool.Pool, auth authz.Authorizer, incidences service.IncidenceReader, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, auth, incidences, bus, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ratings"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts rating routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/incidences/:id/rating", m.handler.Create)
	ctx.Protected.GET("/incidences/:id/rating", m.handler.GetByIncidence)
	ctx.Protected.GET("/ratings/ranking", m.handler.Ranking)
	ctx.Protected.GET("/ratings/:id", m.handler.Get)
	ctx.Protected.PUT("/ratings/:id", m.handler.Update)
	ctx.Protected.DELETE("/ratings/:id", m.handler.Delete)
	ctx.Protected.GET("/technicians/:id/rating-stats", m.handler.Stats)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
