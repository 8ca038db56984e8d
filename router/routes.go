package router

import (
	"github.com/labstack/echo/v4"
)

// registerRoutes wires every AAS resource path spec.md §6 names onto
// handlers. Element paths use Echo's wildcard param ("*") since a
// submodel-element path itself contains dots and brackets the router
// must not try to split into its own segments.
func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health/live", s.livez)
	e.GET("/health/ready", s.readyz)
	e.GET("/metrics", s.metrics)

	e.GET("/events/ws", s.Hub.ServeWS)
	e.GET("/events/sse", s.Hub.ServeSSE)

	shells := e.Group("/shells")
	shells.GET("", s.listShells)
	shells.POST("", s.createShell)
	shells.GET("/:id_token", s.getShell)
	shells.PUT("/:id_token", s.putShell)
	shells.DELETE("/:id_token", s.deleteShell)

	e.GET("/lookup/shells", s.lookupShellsByAssetID)

	submodels := e.Group("/submodels")
	submodels.GET("", s.listSubmodels)
	submodels.POST("", s.createSubmodel)
	submodels.GET("/:id_token", s.getSubmodel)
	submodels.PUT("/:id_token", s.putSubmodel)
	submodels.DELETE("/:id_token", s.deleteSubmodel)
	submodels.GET("/:id_token/submodel-elements/*", s.getSubmodelElement)
	submodels.PUT("/:id_token/submodel-elements/*", s.putSubmodelElement)
	submodels.DELETE("/:id_token/submodel-elements/*", s.deleteSubmodelElement)

	concepts := e.Group("/concept-descriptions")
	concepts.GET("", s.listConceptDescriptions)
	concepts.POST("", s.createConceptDescription)
	concepts.GET("/:id_token", s.getConceptDescription)
	concepts.PUT("/:id_token", s.putConceptDescription)
	concepts.DELETE("/:id_token", s.deleteConceptDescription)

	shellDescriptors := e.Group("/shell-descriptors")
	shellDescriptors.GET("", s.listShellDescriptors)
	shellDescriptors.POST("", s.createShellDescriptor)
	shellDescriptors.GET("/:id_token", s.getShellDescriptor)
	shellDescriptors.PUT("/:id_token", s.putShellDescriptor)
	shellDescriptors.DELETE("/:id_token", s.deleteShellDescriptor)
	shellDescriptors.PATCH("/:id_token/endpoints", s.patchShellDescriptorEndpoints)

	submodelDescriptors := e.Group("/submodel-descriptors")
	submodelDescriptors.GET("", s.listSubmodelDescriptors)
	submodelDescriptors.POST("", s.createSubmodelDescriptor)
	submodelDescriptors.GET("/:id_token", s.getSubmodelDescriptor)
	submodelDescriptors.PUT("/:id_token", s.putSubmodelDescriptor)
	submodelDescriptors.DELETE("/:id_token", s.deleteSubmodelDescriptor)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return notFound("route", c.Request().URL.Path)
	})
}
