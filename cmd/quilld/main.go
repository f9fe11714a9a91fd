package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"quill/internal/backend"
	"quill/internal/config"
	"quill/internal/logging"
)

func main() {
	var configPath string
	var offline bool
	flag.StringVar(&configPath, "config", "", "path to a quill config file")
	flag.BoolVar(&offline, "offline", false, "use the scripted generator even when an API key is set")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format, ""); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	var gen backend.Generator
	if cfg.Backend.APIKey != "" && !offline {
		gen = backend.NewOpenAIGenerator(cfg.Backend.APIKey, cfg.Backend.BaseURL, cfg.Backend.Model, cfg.Backend.MaxTokens)
		logging.WithField("model", cfg.Backend.Model).Info("using OpenAI-compatible generator")
	} else {
		gen = backend.ScriptedGenerator{Delay: 40 * time.Millisecond}
		logging.Info("no API key set, using scripted generator")
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.Backend.Addr,
		Handler:           backend.NewServer(backend.NewMemory(), gen).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Infof("story server listening on %s", cfg.Backend.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Errorf("shutdown failed: %v", err)
	}
}
