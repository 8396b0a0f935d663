package wall

// Store is the persistence abstraction for camera definitions and scenes.
// Implementations can be in-memory or file-backed. Registry and Model use a
// Store for all reads and writes; callers never see which Store is in use.
type Store interface {
	GetCamera(id CameraID) (*Camera, bool)
	SetCamera(c *Camera)
	DeleteCamera(id CameraID)
	ListCameraIDs() []CameraID

	GetScene(id SceneID) (*Scene, bool)
	SetScene(s *Scene)
	DeleteScene(id SceneID)
	ListSceneIDs() []SceneID
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	cameras map[CameraID]*Camera
	scenes  map[SceneID]*Scene
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cameras: make(map[CameraID]*Camera),
		scenes:  make(map[SceneID]*Scene),
	}
}

// GetCamera implements Store.GetCamera.
func (s *MemoryStore) GetCamera(id CameraID) (*Camera, bool) {
	c, ok := s.cameras[id]
	return c, ok
}

// SetCamera implements Store.SetCamera.
func (s *MemoryStore) SetCamera(c *Camera) {
	s.cameras[c.ID] = c
}

// DeleteCamera implements Store.DeleteCamera.
func (s *MemoryStore) DeleteCamera(id CameraID) {
	delete(s.cameras, id)
}

// ListCameraIDs implements Store.ListCameraIDs.
func (s *MemoryStore) ListCameraIDs() []CameraID {
	ids := make([]CameraID, 0, len(s.cameras))
	for id := range s.cameras {
		ids = append(ids, id)
	}
	return ids
}

// GetScene implements Store.GetScene.
func (s *MemoryStore) GetScene(id SceneID) (*Scene, bool) {
	sc, ok := s.scenes[id]
	return sc, ok
}

// SetScene implements Store.SetScene.
func (s *MemoryStore) SetScene(sc *Scene) {
	s.scenes[sc.ID] = sc
}

// DeleteScene implements Store.DeleteScene.
func (s *MemoryStore) DeleteScene(id SceneID) {
	delete(s.scenes, id)
}

// ListSceneIDs implements Store.ListSceneIDs.
func (s *MemoryStore) ListSceneIDs() []SceneID {
	ids := make([]SceneID, 0, len(s.scenes))
	for id := range s.scenes {
		ids = append(ids, id)
	}
	return ids
}
