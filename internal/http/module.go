// Package http wires the HTTP-facing modules into a single gin engine.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module may touch while registering routes.
// Protected already runs the bearer-token middleware; routes mounted on
// V1 directly are public.
type RouterContext struct {
	V1        *gin.RouterGroup
	Protected *gin.RouterGroup
}
