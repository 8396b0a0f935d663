package wall

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidQuadrant is returned when a quadrant index is out of range
	// for the screen's declared layout.
	ErrInvalidQuadrant = errors.New("quadrant out of range for layout")

	// ErrScreenNotFound is returned when a screen id has never registered.
	ErrScreenNotFound = errors.New("screen not found")

	// ErrSceneNotFound is returned when a scene id does not exist.
	ErrSceneNotFound = errors.New("scene not found")
)

// screenRecord is the model's internal per-screen state: the screen metadata
// plus its row-major assignment slice and configuration version.
type screenRecord struct {
	screen  Screen
	cameras []CameraID // length == layout.Slots(), "" for blank quadrants
	version uint64
}

// Model maps screens to quadrants to camera assignments and owns named scene
// snapshots. All mutations go through one mutex: concurrent authoring
// requests are applied in arrival order and readers always observe a
// consistent snapshot, never a partially-applied assignment set.
type Model struct {
	mu      sync.RWMutex
	store   Store // scenes
	screens map[ScreenID]*screenRecord

	now func() time.Time
}

// NewModel constructs a wall model whose scenes persist through the given
// store.
func NewModel(store Store) *Model {
	return &Model{
		store:   store,
		screens: make(map[ScreenID]*screenRecord),
		now:     time.Now,
	}
}

// RegisterScreen creates or refreshes a screen record from a node
// registration handshake and returns the screen's current configuration.
// A returning screen keeps its previous assignments when the layout is
// unchanged; a layout change resets the assignment slice to blank quadrants.
func (m *Model) RegisterScreen(id ScreenID, name, addr string, layout Layout) ScreenConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		rec = &screenRecord{
			screen: Screen{ID: id, Name: name, Addr: addr, Layout: layout},
		}
		m.screens[id] = rec
	}
	rec.screen.Name = name
	rec.screen.Addr = addr
	rec.screen.State = ScreenOnline
	rec.screen.LastHeartbeat = m.now()

	if rec.screen.Layout != layout || rec.cameras == nil {
		rec.screen.Layout = layout
		rec.cameras = make([]CameraID, layout.Slots())
		rec.version++
	}
	return m.configLocked(rec)
}

// Heartbeat records a heartbeat for the screen and returns the state it was
// in before the heartbeat, so the caller can push a fresh configuration to
// screens recovering from stale or offline.
func (m *Model) Heartbeat(id ScreenID) (previous ScreenState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return "", ErrScreenNotFound
	}
	previous = rec.screen.State
	rec.screen.State = ScreenOnline
	rec.screen.LastHeartbeat = m.now()
	return previous, nil
}

// MarkLiveness sweeps all screens against the heartbeat interval: a screen
// that missed 2 consecutive intervals becomes stale, 4 becomes offline.
// Returns the ids of screens whose state changed.
func (m *Model) MarkLiveness(interval time.Duration) []ScreenID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []ScreenID
	for id, rec := range m.screens {
		if rec.screen.State == ScreenOffline || rec.screen.LastHeartbeat.IsZero() {
			continue
		}
		silent := m.now().Sub(rec.screen.LastHeartbeat)
		var next ScreenState
		switch {
		case silent >= 4*interval:
			next = ScreenOffline
		case silent >= 2*interval:
			next = ScreenStale
		default:
			continue
		}
		if rec.screen.State != next {
			rec.screen.State = next
			changed = append(changed, id)
		}
	}
	return changed
}

// SetScreenOffline forces a screen offline (explicit node disconnect).
func (m *Model) SetScreenOffline(id ScreenID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.screens[id]; ok {
		rec.screen.State = ScreenOffline
	}
}

// Screens returns copies of all known screens.
func (m *Model) Screens() []Screen {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Screen, 0, len(m.screens))
	for _, rec := range m.screens {
		out = append(out, rec.screen)
	}
	return out
}

// Screen returns a copy of one screen record.
func (m *Model) Screen(id ScreenID) (Screen, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.screens[id]
	if !ok {
		return Screen{}, ErrScreenNotFound
	}
	return rec.screen, nil
}

// OnlineCount returns the number of screens currently online. Used for
// metrics.
func (m *Model) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.screens {
		if rec.screen.State == ScreenOnline {
			n++
		}
	}
	return n
}

// SetPosition records the physical position of a screen on the authoring
// canvas.
func (m *Model) SetPosition(id ScreenID, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return ErrScreenNotFound
	}
	p := pos
	rec.screen.Position = &p
	return nil
}

// Assign binds one quadrant of a screen to a camera ("" clears the quadrant).
// Fails with ErrInvalidQuadrant when the index is out of range for the
// screen's declared layout; state is left unchanged on any error.
func (m *Model) Assign(id ScreenID, quadrant int, camera CameraID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return ErrScreenNotFound
	}
	if !rec.screen.Layout.ValidQuadrant(quadrant) {
		return ErrInvalidQuadrant
	}
	if rec.cameras[quadrant] == camera {
		return nil
	}
	rec.cameras[quadrant] = camera
	rec.version++
	return nil
}

// SetScreenLayout switches the declared layout of a screen. The assignment
// slice is resized: kept where indices overlap, blanked beyond the new slot
// count. When the new layout is 2x2 and every quadrant ends up empty,
// auto-layout suggestions from the given cameras are applied.
func (m *Model) SetScreenLayout(id ScreenID, layout Layout, cams []*Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return ErrScreenNotFound
	}
	if rec.screen.Layout == layout {
		return nil
	}

	next := make([]CameraID, layout.Slots())
	copy(next, rec.cameras)
	rec.screen.Layout = layout
	rec.cameras = next
	rec.version++

	if layout == Layout2x2 && allEmpty(next) {
		if placed, ok := AutoLayout2x2(cams); ok {
			copy(rec.cameras, placed)
		}
	}
	return nil
}

// Touch bumps a screen's configuration version without changing its
// assignments. Derived per-screen state (such as a wall-group crop hint)
// lives outside the assignment slice; when it changes, the version must still
// move or the node discards the next push as a duplicate.
func (m *Model) Touch(id ScreenID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return ErrScreenNotFound
	}
	rec.version++
	return nil
}

// ReplaceAssignments installs a full row-major camera list for a screen.
// The list is truncated or padded to the screen's slot count.
func (m *Model) ReplaceAssignments(id ScreenID, cameras []CameraID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.screens[id]
	if !ok {
		return ErrScreenNotFound
	}
	next := make([]CameraID, rec.screen.Layout.Slots())
	copy(next, cameras)
	rec.cameras = next
	rec.version++
	return nil
}

// ScreenConfig returns the full replacement configuration snapshot for one
// screen.
func (m *Model) ScreenConfig(id ScreenID) (ScreenConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.screens[id]
	if !ok {
		return ScreenConfig{}, ErrScreenNotFound
	}
	return m.configLocked(rec), nil
}

// Assignments returns the current quadrant bindings of every screen, for
// scene snapshots and reference checks.
func (m *Model) Assignments() []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Assignment
	for id, rec := range m.screens {
		for q, cam := range rec.cameras {
			out = append(out, Assignment{Screen: id, Quadrant: q, Camera: cam})
		}
	}
	return out
}

// CameraReferenced reports whether the camera appears in any saved scene or
// any screen's current assignments.
func (m *Model) CameraReferenced(id CameraID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.screens {
		for _, cam := range rec.cameras {
			if cam == id {
				return true
			}
		}
	}
	for _, sid := range m.store.ListSceneIDs() {
		if sc, ok := m.store.GetScene(sid); ok && sc.References(id) {
			return true
		}
	}
	return false
}

// SaveScene snapshots the current assignments of every screen into a named
// scene. Saving under an existing scene id overwrites it (explicit
// overwrite); otherwise a new scene id is generated.
func (m *Model) SaveScene(id SceneID, name, description string) *Scene {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	sc := &Scene{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		ModifiedAt:  now,
		Screens:     make(map[ScreenID]SceneEntry),
	}
	if sc.ID == "" {
		sc.ID = SceneID(uuid.NewString())
	} else if prev, ok := m.store.GetScene(sc.ID); ok {
		sc.CreatedAt = prev.CreatedAt
	}

	for sid, rec := range m.screens {
		cams := make([]CameraID, len(rec.cameras))
		copy(cams, rec.cameras)
		entry := SceneEntry{Layout: rec.screen.Layout, Cameras: cams}
		if rec.screen.Position != nil {
			p := *rec.screen.Position
			entry.Position = &p
		}
		sc.Screens[sid] = entry
	}
	m.store.SetScene(sc)
	return sc
}

// RestoreScene atomically replaces the assignments of every screen the scene
// references; screens the scene does not mention are untouched. It returns
// the ids of the screens whose configuration changed, including offline
// ones; the caller decides which of them can actually be pushed to.
func (m *Model) RestoreScene(id SceneID) ([]ScreenID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, ok := m.store.GetScene(id)
	if !ok {
		return nil, ErrSceneNotFound
	}

	affected := make([]ScreenID, 0, len(sc.Screens))
	for sid, entry := range sc.Screens {
		rec, ok := m.screens[sid]
		if !ok {
			// Scene references a screen that has never registered in this
			// server lifetime; create the record so it receives the restored
			// configuration when it first registers.
			rec = &screenRecord{screen: Screen{ID: sid, State: ScreenOffline, Layout: entry.Layout}}
			m.screens[sid] = rec
		}
		rec.screen.Layout = entry.Layout
		rec.cameras = make([]CameraID, entry.Layout.Slots())
		copy(rec.cameras, entry.Cameras)
		if entry.Position != nil {
			p := *entry.Position
			rec.screen.Position = &p
		}
		rec.version++
		affected = append(affected, sid)
	}
	return affected, nil
}

// Scene returns the scene with the given id.
func (m *Model) Scene(id SceneID) (*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sc, ok := m.store.GetScene(id)
	if !ok {
		return nil, ErrSceneNotFound
	}
	return sc, nil
}

// UpdateScene renames a scene or changes its description.
func (m *Model) UpdateScene(id SceneID, name, description string) (*Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, ok := m.store.GetScene(id)
	if !ok {
		return nil, ErrSceneNotFound
	}
	if name != "" {
		sc.Name = name
	}
	if description != "" {
		sc.Description = description
	}
	sc.ModifiedAt = m.now().UTC()
	m.store.SetScene(sc)
	return sc, nil
}

// DeleteScene removes a scene.
func (m *Model) DeleteScene(id SceneID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store.GetScene(id); !ok {
		return ErrSceneNotFound
	}
	m.store.DeleteScene(id)
	return nil
}

// ListScenes returns all saved scenes, most recently modified first.
func (m *Model) ListScenes() []*Scene {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.store.ListSceneIDs()
	out := make([]*Scene, 0, len(ids))
	for _, id := range ids {
		if sc, ok := m.store.GetScene(id); ok {
			out = append(out, sc)
		}
	}
	sortScenesByModified(out)
	return out
}

func (m *Model) configLocked(rec *screenRecord) ScreenConfig {
	cams := make([]CameraID, len(rec.cameras))
	copy(cams, rec.cameras)
	return ScreenConfig{
		Screen:  rec.screen.ID,
		Version: rec.version,
		Layout:  rec.screen.Layout,
		Cameras: cams,
	}
}

func allEmpty(cams []CameraID) bool {
	for _, c := range cams {
		if c != "" {
			return false
		}
	}
	return true
}

func sortScenesByModified(scenes []*Scene) {
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].ModifiedAt.After(scenes[j].ModifiedAt)
	})
}
