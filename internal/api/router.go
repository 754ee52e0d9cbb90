package api

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/openbridge/internal/logging"
	"github.com/nghyane/openbridge/internal/orchestrator"
)

// BuildInfo carries version metadata surfaced by GET /version, set at
// link time the way the teacher's cmd/server/main.go does for its own
// Version/Commit/BuildDate vars.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var requestsServed atomic.Int64

// NewRouter builds the gin engine exposing the Responses API plus the
// operational endpoints, grounded on the teacher's internal/api/server.go
// middleware ordering (recovery, access log, request id) and narrowed to
// OpenBridge's single route family.
func NewRouter(orch *orchestrator.Orchestrator, clientAPIKey string, build BuildInfo) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(logging.GinLogrusLogger())
	engine.Use(RequestID())
	engine.Use(func(c *gin.Context) {
		requestsServed.Add(1)
		c.Next()
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    build.Version,
			"commit":     build.Commit,
			"build_date": build.BuildDate,
		})
	})
	engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requests_served": requestsServed.Load()})
	})

	h := NewHandlers(orch)
	v1 := engine.Group("/v1", ClientAuth(clientAPIKey))
	v1.POST("/responses", h.CreateResponse)
	v1.GET("/responses/:id", h.GetResponse)
	v1.DELETE("/responses/:id", h.DeleteResponse)

	return engine
}
