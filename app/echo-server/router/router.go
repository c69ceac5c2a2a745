package router

import (
	"phishSentinel/internal/middleware"
	"phishSentinel/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupEventRoutes(api *echo.Group, handler *rest.DetectorHandler, authRequired echo.MiddlewareFunc) {
	events := api.Group("/events", authRequired)

	events.POST("/navigation", handler.Navigation)
	events.POST("/content", handler.Content)
	events.POST("/ready", handler.Ready)
}

func SetupTabRoutes(api *echo.Group, handler *rest.DetectorHandler, authRequired echo.MiddlewareFunc) {
	tabs := api.Group("/tabs", authRequired)

	tabs.DELETE("/:tab_id", handler.CloseTab)
	tabs.GET("/:tab_id/verdict", handler.GetVerdict)
	tabs.GET("/:tab_id/history", handler.History)
	tabs.GET("/:tab_id/verdicts/stream", handler.StreamVerdicts)
}

func SetupModelRoutes(api *echo.Group, handler *rest.ModelHandler, authRequired echo.MiddlewareFunc) {
	models := api.Group("/models")

	models.GET("", handler.Status)
	models.POST("/reload", handler.Reload, authRequired, middleware.AdminOnly())
}

func SetupMetricsRoute(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
