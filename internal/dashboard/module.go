// Package dashboard aggregates incidence, rating and housing projections for
// supervisors and exports them as a workbook.
package dashboard

import (
	"techo_backend/internal/authz"
	"techo_backend/internal/dashboard/handler"
	"techo_backend/internal/dashboard/service"
	apphttp "techo_backend/internal/http"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"
)

// Module is the dashboard module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the dashboard module over the other modules' read ports.
func NewModule(
	auth authz.Authorizer,
	incidences service.IncidenceStats,
	ratings service.RatingRanking,
	housing service.DeliveryStats,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(auth, incidences, ratings, housing, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dashboard"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts dashboard routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/dashboard/summary", m.handler.Summary)
	ctx.Protected.GET("/dashboard/export.xlsx", m.handler.Export)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
