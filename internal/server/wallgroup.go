package server

import (
	"sort"

	"videowall/internal/wall"
)

// Physical tile geometry used for wall-group detection: four 1x1 screens
// arranged in a 2x2 grid on the authoring canvas, each showing the same
// camera, render one quadrant of that camera's image each.
const (
	tileWidth         = 420
	tileHeight        = 300
	positionTolerance = 50
)

var cropNames = []string{"top-left", "top-right", "bottom-left", "bottom-right"}

type tile struct {
	screen wall.ScreenID
	pos    wall.Position
}

// wallCropFor returns the crop quadrant for the screen if it is part of a
// detected wall group, or "" otherwise.
func (s *Server) wallCropFor(id wall.ScreenID) string {
	for _, group := range s.detectWallGroups() {
		for i, t := range group {
			if t.screen == id {
				return cropNames[i]
			}
		}
	}
	return ""
}

// wallCrops snapshots the crop quadrant of every screen currently part of a
// wall group, keyed by screen id.
func (s *Server) wallCrops() map[wall.ScreenID]string {
	crops := make(map[wall.ScreenID]string)
	for _, group := range s.detectWallGroups() {
		for i, t := range group {
			crops[t.screen] = cropNames[i]
		}
	}
	return crops
}

// pushWallChanges re-pushes every screen whose wall-group crop changed since
// the before snapshot, skipping screens the caller already pushed. A crop
// change on its own does not move the screen's configuration version, so the
// version is bumped first; otherwise the node would discard the push as a
// duplicate.
func (s *Server) pushWallChanges(before map[wall.ScreenID]string, pushed ...wall.ScreenID) {
	after := s.wallCrops()

	changed := make(map[wall.ScreenID]struct{})
	for id, crop := range after {
		if before[id] != crop {
			changed[id] = struct{}{}
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			changed[id] = struct{}{}
		}
	}
	for _, id := range pushed {
		delete(changed, id)
	}

	for id := range changed {
		if err := s.model.Touch(id); err != nil {
			continue
		}
		s.PushScreen(id)
	}
}

// detectWallGroups finds sets of four 1x1 screens showing the same single
// camera whose recorded positions form a 2x2 grid within tolerance. Each
// group is returned sorted row-major (top-left first).
func (s *Server) detectWallGroups() [][]tile {
	screens := s.model.Screens()

	// Group candidate tiles by the single camera they display.
	byCamera := make(map[wall.CameraID][]tile)
	for _, sc := range screens {
		if sc.Layout != wall.Layout1x1 || sc.Position == nil {
			continue
		}
		cfg, err := s.model.ScreenConfig(sc.ID)
		if err != nil || len(cfg.Cameras) != 1 || cfg.Cameras[0] == "" {
			continue
		}
		byCamera[cfg.Cameras[0]] = append(byCamera[cfg.Cameras[0]], tile{screen: sc.ID, pos: *sc.Position})
	}

	var groups [][]tile
	for _, tiles := range byCamera {
		if len(tiles) != 4 {
			continue
		}
		if !is2x2Formation(tiles) {
			continue
		}
		sort.Slice(tiles, func(i, j int) bool {
			if tiles[i].pos.Y != tiles[j].pos.Y {
				return tiles[i].pos.Y < tiles[j].pos.Y
			}
			return tiles[i].pos.X < tiles[j].pos.X
		})
		groups = append(groups, tiles)
	}
	return groups
}

// is2x2Formation checks that four tiles sit on exactly two columns and two
// rows spaced one tile apart within tolerance.
func is2x2Formation(tiles []tile) bool {
	xs := distinct(tiles, func(t tile) int { return t.pos.X })
	ys := distinct(tiles, func(t tile) int { return t.pos.Y })
	if len(xs) != 2 || len(ys) != 2 {
		return false
	}
	if abs(xs[1]-xs[0]-tileWidth) > positionTolerance {
		return false
	}
	if abs(ys[1]-ys[0]-tileHeight) > positionTolerance {
		return false
	}
	return true
}

func distinct(tiles []tile, key func(tile) int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, t := range tiles {
		v := key(t)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
