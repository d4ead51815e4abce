package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/voicegate/internal/config"
	"github.com/xpanvictor/voicegate/internal/server"
	"github.com/xpanvictor/voicegate/pkg/Logger"
)

// Serves a voice gate per WebSocket client until SIGINT/SIGTERM.
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	defer logger.Sync()
	logger.Infof("Logger initialized env=%s", cfg.Env)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	dep := server.NewServerDependencies(cfg, logger, nil)
	server.InitializeRoutes(router, dep)

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Handler(),
	}
	go func() {
		logger.Infof("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server exiting: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err: %v", err)
	}
	// hijacked sockets are not tracked by Shutdown
	if err := dep.VoiceHandler.Close(); err != nil {
		logger.Errorf("Closing voice sessions: %v", err)
	}
	logger.Info("Shutdown system")
}
