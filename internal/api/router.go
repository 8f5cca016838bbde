// Package api exposes the conversion service over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

// RouterConfig wires the router to the job manager and its settings
type RouterConfig struct {
	Manager        *jobs.Manager
	Voices         []tts.Voice
	DefaultVoice   tts.VoiceConfig
	MaxFileSize    int64
	AllowedOrigins []string
	MetricsEnabled bool
	Checks         []observability.DependencyCheck
}

// NewRouter builds the HTTP routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORS(cfg.AllowedOrigins))
	r.MaxMultipartMemory = 8 << 20

	h := NewHandler(cfg.Manager, cfg.Voices, cfg.DefaultVoice, cfg.MaxFileSize)

	r.GET("/health", gin.WrapF(observability.HealthCheckHandler()))
	r.GET("/ready", gin.WrapF(observability.ReadinessHandler(cfg.Checks...)))
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/convert", h.ConvertDocument)
		api.GET("/voices", h.ListVoices)
		api.GET("/jobs/:id", h.GetJobStatus)
		api.GET("/jobs/:id/audio", h.DownloadAudio)
		api.DELETE("/jobs/:id", h.DeleteJob)
	}

	r.GET("/ws/jobs/:id", h.StreamProgress(newUpgrader(cfg.AllowedOrigins)))

	return r
}
