package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// ErrUnknownScene is returned by Create for names that are not registered
var ErrUnknownScene = errors.New("unknown scene")

// Scene contains all the elements needed for rendering
type Scene struct {
	Name           string
	CameraConfig   renderer.CameraConfig
	SamplingConfig renderer.SamplingConfig
	World          *geometry.HittableList // Objects in the scene
}

// NewScene creates an empty scene with the default camera and sampling settings
func NewScene(name string) *Scene {
	return &Scene{
		Name:           name,
		CameraConfig:   renderer.DefaultCameraConfig(),
		SamplingConfig: renderer.DefaultSamplingConfig(),
		World:          geometry.NewHittableList(),
	}
}

// Add appends objects to the world
func (s *Scene) Add(objects ...core.Hittable) {
	for _, object := range objects {
		s.World.Add(object)
	}
}

// GetWorld returns the world as a single hittable
func (s *Scene) GetWorld() core.Hittable {
	return s.World
}

// GetCameraConfig returns the camera configuration
func (s *Scene) GetCameraConfig() renderer.CameraConfig {
	return s.CameraConfig
}

// GetSamplingConfig returns the sampling configuration
func (s *Scene) GetSamplingConfig() renderer.SamplingConfig {
	return s.SamplingConfig
}

// GetPrimitiveCount returns the total number of primitive objects in the scene
func (s *Scene) GetPrimitiveCount() int {
	return countPrimitives(s.World)
}

// countPrimitives counts leaves, descending into nested lists
func countPrimitives(h core.Hittable) int {
	list, ok := h.(*geometry.HittableList)
	if !ok {
		return 1
	}
	count := 0
	for _, object := range list.Objects {
		count += countPrimitives(object)
	}
	return count
}

// applyCameraOverrides merges the first override, if any, into config
func applyCameraOverrides(config renderer.CameraConfig, overrides []renderer.CameraConfig) renderer.CameraConfig {
	if len(overrides) > 0 {
		return renderer.MergeCameraConfig(config, overrides[0])
	}
	return config
}

// builtin describes a registered scene constructor
type builtin struct {
	name        string
	displayName string
	description string
	create      func(overrides ...renderer.CameraConfig) (*Scene, error)
}

var builtins = map[string]builtin{
	"default": {
		name:        "default",
		displayName: "Default Scene",
		description: "Diffuse, hollow glass and fuzzy gold spheres on a green ground",
		create: func(overrides ...renderer.CameraConfig) (*Scene, error) {
			return NewDefaultScene(overrides...), nil
		},
	},
	"final": {
		name:        "final",
		displayName: "Final Scene",
		description: "Hundreds of random small spheres around three large ones",
		create: func(overrides ...renderer.CameraConfig) (*Scene, error) {
			return NewFinalScene(FinalSceneSeed, overrides...), nil
		},
	},
	"spheregrid": {
		name:        "spheregrid",
		displayName: "Sphere Grid",
		description: "20x20 grid of rainbow-colored metallic spheres",
		create: func(overrides ...renderer.CameraConfig) (*Scene, error) {
			return NewSphereGridScene(overrides...), nil
		},
	},
	"sdf-shapes": {
		name:        "sdf-shapes",
		displayName: "SDF Shapes",
		description: "Signed distance field box, cylinder and carved cube",
		create:      NewSDFShapesScene,
	},
}

// Create builds the named built-in scene, applying an optional camera override
func Create(name string, cameraOverrides ...renderer.CameraConfig) (*Scene, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownScene, name, BuiltinNames())
	}
	s, err := b.create(cameraOverrides...)
	if err != nil {
		return nil, fmt.Errorf("create scene %q: %w", name, err)
	}
	return s, nil
}

// BuiltinNames returns the registered scene names in sorted order
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
