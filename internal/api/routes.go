package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"RatioScope/internal/metrics"
)

// NewRouter builds the HTTP API. A nil m leaves /metrics unregistered.
func NewRouter(h *Handler, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	pairs := r.Group("/api/pairs")
	{
		pairs.GET("", h.ListPairs)
		pairs.GET("/:name", h.GetPair)
		pairs.GET("/:name/volume", h.GetVolume)
		pairs.POST("/:name/refresh", h.Refresh)
		pairs.PUT("/:name/indicators", h.SetIndicators)
		pairs.PUT("/:name/interval", h.SetInterval)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Printf("[INFO] %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
