package wall

import (
	"encoding/json"
	"fmt"
	"os"
)

// camerasFile matches the on-disk JSON shape of the cameras definition file.
type camerasFile struct {
	Cameras []*Camera `json:"cameras"`
}

// LoadCameras reads camera definitions from a JSON file. A missing file is
// not an error; it yields an empty slice so a fresh install starts clean.
func LoadCameras(path string) ([]*Camera, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cameras file: %w", err)
	}
	var f camerasFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cameras file: %w", err)
	}
	for _, c := range f.Cameras {
		if c.State == "" {
			c.State = CameraUnknown
		}
	}
	return f.Cameras, nil
}

// SaveCameras writes camera definitions to a JSON file.
func SaveCameras(path string, cams []*Camera) error {
	data, err := json.MarshalIndent(camerasFile{Cameras: cams}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadScenes reads saved scenes from a JSON file keyed by scene id. A missing
// file yields an empty map.
func LoadScenes(path string) (map[SceneID]*Scene, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[SceneID]*Scene{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scenes file: %w", err)
	}
	scenes := make(map[SceneID]*Scene)
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("parse scenes file: %w", err)
	}
	for id, sc := range scenes {
		sc.ID = id
	}
	return scenes, nil
}

// SaveScenes writes all scenes to a JSON file keyed by scene id.
func SaveScenes(path string, scenes map[SceneID]*Scene) error {
	data, err := json.MarshalIndent(scenes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
