package server

import (
	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/voicegate/internal/config"
	"github.com/xpanvictor/voicegate/internal/handlers"
	ws "github.com/xpanvictor/voicegate/internal/handlers/websocket"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock"
)

type Dependencies struct {
	Configs      *config.Settings
	Logger       *Logger.Logger
	VoiceHandler *ws.Handler
}

// NewServerDependencies builds the handlers the router needs. A nil clock
// uses wall time.
func NewServerDependencies(cfg *config.Settings, logger *Logger.Logger, clk clock.Clock) Dependencies {
	return Dependencies{
		Configs:      cfg,
		Logger:       logger,
		VoiceHandler: ws.NewHandler(cfg, logger.Named("ws"), clk),
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.Use(
		handlers.ErrorHandlerMiddleware(dep.Logger),
		handlers.RequestLoggerMiddleware(dep.Logger.Named("http")),
		handlers.CORSMiddleware(dep.Configs.Server.AllowedOrigin),
	)

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	dep.VoiceHandler.RegisterRoutes(r)
}
