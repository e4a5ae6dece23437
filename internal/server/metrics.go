package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerMetrics registers the /metrics endpoint for Prometheus scraping.
// This endpoint is unauthenticated (standard for Prometheus targets).
func (s *Server) registerMetrics(engine *gin.Engine) {
	if s.gatherer == nil {
		return
	}
	engine.GET("/metrics", compress(), gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}
