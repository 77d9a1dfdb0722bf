// Package http wires the session and encoder-control APIs plus the
// realtime channel onto a gin engine.
package http

import (
	"context"

	"castforge/internal/app"
	"castforge/internal/config"
	"castforge/internal/hub"
	"castforge/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClientTokenMiddleware tags every client with a stable opaque token.
// The realtime channel derives observer identity from it.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, svc *app.Service, h *hub.Hub, m *metrics.Metrics) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CastForge", store))
	r.Use(ClientTokenMiddleware())

	handlers := &Handlers{Service: svc, Hub: h, Metrics: m, Config: cfg}

	api := r.Group("/api")

	api.POST("/sessions", handlers.CreateSession)
	api.GET("/sessions", handlers.ListSessions)
	api.GET("/sessions/:id", handlers.GetSession)
	api.PATCH("/sessions/:id", handlers.UpdateSession)
	api.DELETE("/sessions/:id", handlers.DeleteSession)
	api.POST("/sessions/:id/scenes", handlers.AddScene)
	api.POST("/sessions/:id/status", handlers.SetStatus)

	api.GET("/devices", handlers.ListDevices)

	api.POST("/streams/start", handlers.StartStream)
	api.POST("/streams/:id/stop", handlers.StopStream)
	api.GET("/streams/:id", handlers.GetStreamInfo)
	api.PATCH("/streams/:id/audio", handlers.UpdateStreamAudio)

	api.POST("/auth/credential", handlers.StoreCredential)

	api.GET("/ws/events", func(c *gin.Context) {
		handlers.HandleEvents(ctx, c)
	})

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
