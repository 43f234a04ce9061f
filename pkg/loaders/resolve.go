package loaders

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// ErrUnlistedScene is returned by LoadListedScene for IDs that name a script path
var ErrUnlistedScene = errors.New("scene is not a built-in or script:<name> ID")

// LoadListedScene is LoadScene restricted to the IDs scene.ListAllScenes can return:
// built-in names and "script:<name>". Raw script paths are rejected.
func LoadListedScene(id string, cameraOverrides ...renderer.CameraConfig) (*scene.Scene, error) {
	if !strings.HasPrefix(id, scene.ScriptIDPrefix) && strings.HasSuffix(id, scene.ScriptExt) {
		return nil, fmt.Errorf("%w: %q", ErrUnlistedScene, id)
	}
	return LoadScene(id, cameraOverrides...)
}

// LoadScene resolves a scene ID as listed by scene.ListAllScenes.
// "script:<name>" loads <scenes dir>/<name>.zy, a path ending in ".zy" loads that file,
// and anything else is a built-in scene name.
// A camera override is merged into the scene's own camera.
func LoadScene(id string, cameraOverrides ...renderer.CameraConfig) (*scene.Scene, error) {
	var s *scene.Scene
	var err error

	switch {
	case strings.HasPrefix(id, scene.ScriptIDPrefix):
		name := strings.TrimPrefix(id, scene.ScriptIDPrefix)
		if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
			return nil, fmt.Errorf("invalid script scene name %q", name)
		}
		dir := scene.ScenesDir()
		if dir == "" {
			return nil, fmt.Errorf("scene %q: no scenes directory found", id)
		}
		s, err = LoadScriptFile(filepath.Join(dir, name+scene.ScriptExt))
	case strings.HasSuffix(id, scene.ScriptExt):
		s, err = LoadScriptFile(id)
	default:
		return scene.Create(id, cameraOverrides...)
	}

	if err != nil {
		return nil, err
	}
	if len(cameraOverrides) > 0 {
		s.CameraConfig = renderer.MergeCameraConfig(s.CameraConfig, cameraOverrides[0])
	}
	return s, nil
}
