package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videowall/internal/node"
	"videowall/internal/platform/config"
	"videowall/internal/platform/logger"
	"videowall/internal/wall"
)

func main() {
	_ = config.Load()

	serverURL := config.GetEnv("SERVER_URL", "ws://localhost:1982/ws")
	screenID := config.GetEnv("SCREEN_ID", "")
	screenName := config.GetEnv("SCREEN_NAME", "")
	layout := config.GetEnv("LAYOUT", "2x2")
	targetFPS := config.GetEnvInt("TARGET_FPS", 25)
	maxFrameAge := config.GetEnvDuration("MAX_FRAME_AGE", 200*time.Millisecond)
	reconnectInterval := config.GetEnvDuration("RECONNECT_INTERVAL", 10*time.Second)
	heartbeatInterval := config.GetEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second)
	screenWidth := config.GetEnvInt("SCREEN_WIDTH", 1920)
	screenHeight := config.GetEnvInt("SCREEN_HEIGHT", 1080)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	if screenID == "" {
		host, err := os.Hostname()
		if err != nil {
			log.Error("no SCREEN_ID and hostname unavailable", "error", err)
			os.Exit(1)
		}
		screenID = host
	}
	if screenName == "" {
		screenName = screenID
	}
	parsedLayout, err := wall.ParseLayout(layout)
	if err != nil {
		log.Error("invalid LAYOUT", "layout", layout, "error", err)
		os.Exit(1)
	}

	comp := node.NewCompositor(screenWidth, screenHeight, targetFPS, maxFrameAge,
		node.NullRenderer{}, logger.For(log, "compositor"))

	client := node.NewClient(node.ClientConfig{
		ServerURL:         serverURL,
		Screen:            wall.ScreenID(screenID),
		Name:              screenName,
		Layout:            parsedLayout,
		HeartbeatInterval: heartbeatInterval,
		ReconnectInterval: reconnectInterval,
		Adapter: node.AdapterConfig{
			ReconnectInterval: reconnectInterval,
			MaxFrameAge:       maxFrameAge,
		},
	}, comp, logger.For(log, "client"))

	ctx, cancel := context.WithCancel(context.Background())

	go comp.Run(ctx)
	go client.Run(ctx)

	log.Info("display node starting",
		"screen", screenID,
		"server", serverURL,
		"layout", layout,
		"target_fps", targetFPS,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	cancel()

	// Give the loops a moment to close their streams and the channel.
	time.Sleep(500 * time.Millisecond)
	log.Info("display node stopped")
}
