package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"videowall/internal/wall"
)

// Handler exposes the authoring REST surface using go-chi. All mutations go
// through the Server so affected screens receive configuration pushes.
type Handler struct {
	srv *Server
	log *slog.Logger

	started time.Time
}

// NewHandler returns a Handler bound to the given Server.
func NewHandler(srv *Server, log *slog.Logger) *Handler {
	return &Handler{srv: srv, log: log, started: time.Now()}
}

// Routes registers all authoring endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/cameras", h.ListCameras)
		r.Post("/cameras", h.RegisterCamera)
		r.Delete("/cameras/{camera_id}", h.DeregisterCamera)
		r.Get("/rtsp/{camera_id}", h.ResolveStream)

		r.Get("/screens", h.ListScreens)
		r.Get("/screens/{screen_id}/config", h.GetScreenConfig)
		r.Post("/screens/{screen_id}/config", h.UpdateScreenConfig)
		r.Post("/screens/positions", h.UpdatePositions)
		r.Post("/assign", h.Assign)

		r.Get("/scenes", h.ListScenes)
		r.Post("/scenes", h.SaveScene)
		r.Put("/scenes/{scene_id}", h.UpdateScene)
		r.Delete("/scenes/{scene_id}", h.DeleteScene)
		r.Post("/scenes/{scene_id}/apply", h.ApplyScene)

		r.Get("/status", h.Status)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes. Authoring-time misuse
// surfaces to the caller; nothing here mutates state.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wall.ErrInvalidQuadrant), errors.Is(err, wall.ErrInvalidLayout):
		return http.StatusBadRequest
	case errors.Is(err, wall.ErrCameraNotFound),
		errors.Is(err, wall.ErrScreenNotFound),
		errors.Is(err, wall.ErrSceneNotFound):
		return http.StatusNotFound
	case errors.Is(err, wall.ErrCameraInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ListCameras handles GET /api/cameras.
func (h *Handler) ListCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.srv.Registry().List())
}

// RegisterCamera handles POST /api/cameras.
func (h *Handler) RegisterCamera(w http.ResponseWriter, r *http.Request) {
	var cam wall.Camera
	if err := json.NewDecoder(r.Body).Decode(&cam); err != nil {
		writeError(w, http.StatusBadRequest, "invalid camera body")
		return
	}
	if cam.IP == "" && cam.RTSPTemplate == "" {
		writeError(w, http.StatusBadRequest, "camera needs an ip or an rtsp_template")
		return
	}
	id := h.srv.Registry().Register(&cam)
	h.log.Info("camera registered",
		slog.String("camera", string(id)),
		slog.String("name", cam.Name))
	writeJSON(w, http.StatusCreated, map[string]wall.CameraID{"id": id})
}

// DeregisterCamera handles DELETE /api/cameras/{camera_id}. Fails with 409
// while the camera is referenced by a scene or a live assignment.
func (h *Handler) DeregisterCamera(w http.ResponseWriter, r *http.Request) {
	id := wall.CameraID(chi.URLParam(r, "camera_id"))
	err := h.srv.Registry().Deregister(id, h.srv.Model().CameraReferenced)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ResolveStream handles GET /api/rtsp/{camera_id}?layout=2x2. This is the
// single source of truth for camera-to-URI adaptation.
func (h *Handler) ResolveStream(w http.ResponseWriter, r *http.Request) {
	id := wall.CameraID(chi.URLParam(r, "camera_id"))
	layoutParam := r.URL.Query().Get("layout")
	if layoutParam == "" {
		layoutParam = string(wall.Layout2x2)
	}
	layout, err := wall.ParseLayout(layoutParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cam, err := h.srv.Registry().Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": wall.ResolveStreamURI(&cam, layout)})
}

// ListScreens handles GET /api/screens.
func (h *Handler) ListScreens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.srv.Model().Screens())
}

// GetScreenConfig handles GET /api/screens/{screen_id}/config.
func (h *Handler) GetScreenConfig(w http.ResponseWriter, r *http.Request) {
	id := wall.ScreenID(chi.URLParam(r, "screen_id"))
	cfg, err := h.srv.Model().ScreenConfig(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type screenConfigRequest struct {
	Layout  string          `json:"layout"`
	Cameras []wall.CameraID `json:"cameras"`
}

// UpdateScreenConfig handles POST /api/screens/{screen_id}/config: a full
// layout-plus-assignments update for one screen.
func (h *Handler) UpdateScreenConfig(w http.ResponseWriter, r *http.Request) {
	id := wall.ScreenID(chi.URLParam(r, "screen_id"))

	var req screenConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config body")
		return
	}
	layout, err := wall.ParseLayout(req.Layout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	before := h.srv.wallCrops()
	cams := h.cameraPointers()
	if err := h.srv.Model().SetScreenLayout(id, layout, cams); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if req.Cameras != nil {
		if err := h.srv.Model().ReplaceAssignments(id, req.Cameras); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	h.srv.PushScreen(id)
	h.srv.pushWallChanges(before, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type positionsRequest struct {
	Positions map[wall.ScreenID]wall.Position `json:"positions"`
}

// UpdatePositions handles POST /api/screens/positions. Changed positions can
// form or break wall groups, so every affected 1x1 screen is re-pushed.
func (h *Handler) UpdatePositions(w http.ResponseWriter, r *http.Request) {
	var req positionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid positions body")
		return
	}
	before := h.srv.wallCrops()
	for id, pos := range req.Positions {
		if err := h.srv.Model().SetPosition(id, pos); err != nil {
			h.log.Debug("position for unknown screen", slog.String("screen", string(id)))
		}
	}
	h.srv.pushWallChanges(before)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"groups": len(h.srv.detectWallGroups()),
	})
}

type assignRequest struct {
	Screen   wall.ScreenID `json:"screen"`
	Quadrant int           `json:"quadrant"`
	Camera   wall.CameraID `json:"camera"`
}

// Assign handles POST /api/assign: bind or clear one quadrant.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid assign body")
		return
	}
	if req.Camera != "" {
		if _, err := h.srv.Registry().Get(req.Camera); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	before := h.srv.wallCrops()
	if err := h.srv.Model().Assign(req.Screen, req.Quadrant, req.Camera); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.srv.PushScreen(req.Screen)
	h.srv.pushWallChanges(before, req.Screen)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ListScenes handles GET /api/scenes, most recently modified first.
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.srv.Model().ListScenes())
}

type sceneRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SaveScene handles POST /api/scenes: snapshot the current assignments of
// every screen under a new scene id.
func (h *Handler) SaveScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid scene body")
		return
	}
	if req.Name == "" {
		req.Name = "New scene"
	}
	sc := h.srv.Model().SaveScene("", req.Name, req.Description)
	h.log.Info("scene saved",
		slog.String("scene", string(sc.ID)),
		slog.String("name", sc.Name))
	writeJSON(w, http.StatusCreated, sc)
}

// UpdateScene handles PUT /api/scenes/{scene_id}: rename or re-describe.
func (h *Handler) UpdateScene(w http.ResponseWriter, r *http.Request) {
	id := wall.SceneID(chi.URLParam(r, "scene_id"))
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid scene body")
		return
	}
	sc, err := h.srv.Model().UpdateScene(id, req.Name, req.Description)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// DeleteScene handles DELETE /api/scenes/{scene_id}.
func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	id := wall.SceneID(chi.URLParam(r, "scene_id"))
	if err := h.srv.Model().DeleteScene(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ApplyScene handles POST /api/scenes/{scene_id}/apply: atomically restore
// the scene and push to every connected screen it references.
func (h *Handler) ApplyScene(w http.ResponseWriter, r *http.Request) {
	id := wall.SceneID(chi.URLParam(r, "scene_id"))
	applied, err := h.srv.RestoreScene(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.log.Info("scene applied",
		slog.String("scene", string(id)),
		slog.Int("pushed_screens", applied))
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "applied_screens": applied})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"screens_connected":  h.srv.Model().OnlineCount(),
		"cameras_configured": len(h.srv.Registry().List()),
		"uptime_s":           int(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) cameraPointers() []*wall.Camera {
	list := h.srv.Registry().List()
	out := make([]*wall.Camera, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}
