package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videowall/internal/platform/config"
	"videowall/internal/platform/logger"
	"videowall/internal/platform/metrics"
	"videowall/internal/server"
	"videowall/internal/wall"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "1982")
	heartbeatInterval := config.GetEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second)
	camerasFile := config.GetEnv("CAMERAS_FILE", "cameras.json")
	scenesFile := config.GetEnv("SCENES_FILE", "scenes.json")
	persistInterval := config.GetEnvDuration("PERSIST_INTERVAL", 60*time.Second)
	natsURL := config.GetEnv("NATS_URL", "")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	store := wall.NewMemoryStore()
	registry := wall.NewRegistry(store)
	model := wall.NewModel(store)

	cams, err := wall.LoadCameras(camerasFile)
	if err != nil {
		log.Error("load cameras", "file", camerasFile, "error", err)
		os.Exit(1)
	}
	for _, c := range cams {
		registry.Register(c)
	}
	scenes, err := wall.LoadScenes(scenesFile)
	if err != nil {
		log.Error("load scenes", "file", scenesFile, "error", err)
		os.Exit(1)
	}
	for _, sc := range scenes {
		store.SetScene(sc)
	}

	met := metrics.New()

	var events server.Emitter = server.NopEmitter{}
	if natsURL != "" {
		emitter, err := server.NewNATSEmitter(natsURL, log)
		if err != nil {
			log.Error("nats connect", "url", natsURL, "error", err)
			os.Exit(1)
		}
		events = emitter
		defer emitter.Close()
	}

	srv := server.New(registry, model, logger.For(log, "server"), server.Options{
		HeartbeatInterval: heartbeatInterval,
		Metrics:           met,
		Events:            events,
	})
	h := server.NewHandler(srv, logger.For(log, "api"))

	r := chi.NewRouter()
	// The node channel stays outside the middleware chain: the wrapped
	// response writers do not implement http.Hijacker, which the WebSocket
	// upgrade needs.
	r.HandleFunc("/ws", srv.Hub().HandleWS)
	r.Group(func(r chi.Router) {
		r.Use(logger.RequestLogger(log))
		r.Use(metrics.RequestMiddleware(met))
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			met.Handler(func() {
				met.SetOnlineScreens(model.OnlineCount())
				met.SetLiveCameras(registry.LiveCount())
			}).ServeHTTP(w, req)
		})
		h.Routes(r)
	})

	stopMonitor := make(chan struct{})
	go srv.RunHeartbeatMonitor(stopMonitor)

	persist := func() {
		if err := wall.SaveCameras(camerasFile, cameraSnapshot(registry)); err != nil {
			log.Error("save cameras", "file", camerasFile, "error", err)
		}
		if err := wall.SaveScenes(scenesFile, sceneSnapshot(model)); err != nil {
			log.Error("save scenes", "file", scenesFile, "error", err)
		}
	}
	stopPersist := make(chan struct{})
	go func() {
		ticker := time.NewTicker(persistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPersist:
				return
			case <-ticker.C:
				persist()
			}
		}
	}()

	addr := ":" + port
	httpSrv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"cameras", len(cams),
		"scenes", len(scenes),
		"heartbeat_interval", heartbeatInterval.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	close(stopMonitor)
	close(stopPersist)
	srv.Hub().Shutdown()
	persist()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func cameraSnapshot(registry *wall.Registry) []*wall.Camera {
	list := registry.List()
	out := make([]*wall.Camera, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}

func sceneSnapshot(model *wall.Model) map[wall.SceneID]*wall.Scene {
	out := make(map[wall.SceneID]*wall.Scene)
	for _, sc := range model.ListScenes() {
		out[sc.ID] = sc
	}
	return out
}
