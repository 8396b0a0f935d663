package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"videowall/internal/protocol"
	"videowall/internal/wall"
)

func placeWallGroup(srv *Server, camera wall.CameraID) {
	positions := map[wall.ScreenID]wall.Position{
		"tl": {X: 100, Y: 50},
		"tr": {X: 520, Y: 50},
		"bl": {X: 100, Y: 350},
		"br": {X: 520, Y: 350},
	}
	for id, pos := range positions {
		srv.Model().RegisterScreen(id, string(id), "", wall.Layout1x1)
		_ = srv.Model().Assign(id, 0, camera)
		_ = srv.Model().SetPosition(id, pos)
	}
}

func TestDetectWallGroups(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Register(&wall.Camera{ID: "shared", IP: "10.0.0.1"})
	placeWallGroup(srv, "shared")

	groups := srv.detectWallGroups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	order := []wall.ScreenID{"tl", "tr", "bl", "br"}
	for i, want := range order {
		if groups[0][i].screen != want {
			t.Errorf("group[%d] = %s, want %s", i, groups[0][i].screen, want)
		}
	}
}

func TestWallCropFor(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Register(&wall.Camera{ID: "shared", IP: "10.0.0.1"})
	placeWallGroup(srv, "shared")

	cases := map[wall.ScreenID]string{
		"tl": "top-left",
		"tr": "top-right",
		"bl": "bottom-left",
		"br": "bottom-right",
	}
	for id, want := range cases {
		if got := srv.wallCropFor(id); got != want {
			t.Errorf("wallCropFor(%s) = %q, want %q", id, got, want)
		}
	}
	if got := srv.wallCropFor("elsewhere"); got != "" {
		t.Errorf("ungrouped screen crop = %q, want empty", got)
	}
}

func TestDetectWallGroups_requires_same_camera(t *testing.T) {
	srv := newTestServer(t)
	placeWallGroup(srv, "shared")
	_ = srv.Model().Assign("br", 0, "different")

	if groups := srv.detectWallGroups(); len(groups) != 0 {
		t.Errorf("mixed cameras should form no group, got %d", len(groups))
	}
}

func TestDetectWallGroups_requires_grid_spacing(t *testing.T) {
	srv := newTestServer(t)
	placeWallGroup(srv, "shared")
	// Drag one tile far out of formation.
	_ = srv.Model().SetPosition("br", wall.Position{X: 2000, Y: 350})

	if groups := srv.detectWallGroups(); len(groups) != 0 {
		t.Errorf("broken formation should form no group, got %d", len(groups))
	}
}

func TestDetectWallGroups_ignores_multicell_layouts(t *testing.T) {
	srv := newTestServer(t)
	placeWallGroup(srv, "shared")
	_ = srv.Model().SetScreenLayout("tl", wall.Layout2x2, nil)

	if groups := srv.detectWallGroups(); len(groups) != 0 {
		t.Errorf("2x2 tile should disqualify the group, got %d", len(groups))
	}
}

func TestWallCrops_snapshot(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Register(&wall.Camera{ID: "shared", IP: "10.0.0.1"})
	placeWallGroup(srv, "shared")
	srv.Model().RegisterScreen("solo", "solo", "", wall.Layout1x1)

	crops := srv.wallCrops()
	if len(crops) != 4 {
		t.Fatalf("crops = %d entries, want 4", len(crops))
	}
	if crops["tr"] != "top-right" {
		t.Errorf("crops[tr] = %q", crops["tr"])
	}
	if _, ok := crops["solo"]; ok {
		t.Error("ungrouped screen should not appear in the snapshot")
	}
}

func TestWallGroup_dissolution_pushes_remaining_tiles(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Register(&wall.Camera{ID: "shared", IP: "10.0.0.1"})
	srv.Registry().Register(&wall.Camera{ID: "other", IP: "10.0.0.2"})
	r := newTestRouter(srv)

	// Three tiles exist server-side only; the fourth is a connected node.
	for id, pos := range map[wall.ScreenID]wall.Position{
		"tl": {X: 100, Y: 50},
		"bl": {X: 100, Y: 350},
		"br": {X: 520, Y: 350},
	} {
		srv.Model().RegisterScreen(id, string(id), "", wall.Layout1x1)
		_ = srv.Model().Assign(id, 0, "shared")
		_ = srv.Model().SetPosition(id, pos)
	}

	ts := httptest.NewServer(srv.Hub())
	defer ts.Close()
	conn := dialNode(t, ts)
	defer conn.Close()

	env, err := protocol.Encode(protocol.TypeRegister, protocol.Register{
		Screen: "tr", Name: "tr", Layout: wall.Layout1x1,
	})
	if err != nil {
		t.Fatalf("encode register: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write register: %v", err)
	}
	readEnvelope(t, conn) // initial config, not yet grouped
	_ = srv.Model().SetPosition("tr", wall.Position{X: 520, Y: 50})

	// Assigning the shared camera completes the 2x2 formation.
	rec := doJSON(t, r, http.MethodPost, "/api/assign", assignRequest{
		Screen: "tr", Quadrant: 0, Camera: "shared",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign tr: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	grouped, err := protocol.Decode[protocol.ConfigUpdate](readEnvelope(t, conn))
	if err != nil {
		t.Fatalf("decode grouped config: %v", err)
	}
	if grouped.WallCrop != "top-right" {
		t.Fatalf("crop after grouping = %q, want top-right", grouped.WallCrop)
	}

	// Reassigning a different tile dissolves the group. The untouched
	// connected tile must be told it no longer crops, at a version its node
	// will actually apply.
	rec = doJSON(t, r, http.MethodPost, "/api/assign", assignRequest{
		Screen: "tl", Quadrant: 0, Camera: "other",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign tl: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	ungrouped, err := protocol.Decode[protocol.ConfigUpdate](readEnvelope(t, conn))
	if err != nil {
		t.Fatalf("decode ungrouped config: %v", err)
	}
	if ungrouped.Screen != "tr" {
		t.Fatalf("pushed screen = %q, want tr", ungrouped.Screen)
	}
	if ungrouped.WallCrop != "" {
		t.Errorf("crop after dissolution = %q, want empty", ungrouped.WallCrop)
	}
	if ungrouped.Version <= grouped.Version {
		t.Errorf("version = %d, want above %d", ungrouped.Version, grouped.Version)
	}
}

func TestBuildConfigUpdate_includes_crop_and_uris(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Register(&wall.Camera{
		ID: "shared", IP: "10.0.0.1",
		RTSPTemplate: "rtsp://{ip}/s{stream}",
	})
	placeWallGroup(srv, "shared")

	update, err := srv.BuildConfigUpdate("tr")
	if err != nil {
		t.Fatalf("BuildConfigUpdate: %v", err)
	}
	if update.WallCrop != "top-right" {
		t.Errorf("wall crop = %q", update.WallCrop)
	}
	if len(update.Quadrants) != 1 {
		t.Fatalf("quadrants = %d", len(update.Quadrants))
	}
	// 1x1 screens get the main stream.
	if update.Quadrants[0].URI != "rtsp://10.0.0.1/s1" {
		t.Errorf("uri = %q", update.Quadrants[0].URI)
	}
}

func TestBuildConfigUpdate_skips_missing_camera(t *testing.T) {
	srv := newTestServer(t)
	srv.Model().RegisterScreen("wall-1", "w", "", wall.Layout2x2)
	_ = srv.Model().Assign("wall-1", 0, "ghost")

	update, err := srv.BuildConfigUpdate("wall-1")
	if err != nil {
		t.Fatalf("BuildConfigUpdate: %v", err)
	}
	if update.Quadrants[0].URI != "" || update.Quadrants[0].Camera != "" {
		t.Errorf("unregistered camera should yield a blank quadrant: %+v", update.Quadrants[0])
	}
}
