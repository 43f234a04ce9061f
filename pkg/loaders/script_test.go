package loaders

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

const threeSpheres = `;; Scene: Three Spheres
;; Description: Diffuse, glass and metal in a row

(camera (vec3 0 1 5) (vec3 0 0 0) 35)
(lens 0.5 4.5)
(image 320 2.0)
(sampling 16 8)

(def glass (dielectric 1.5))
(sphere (vec3 0 (- 0.0 100.5) 0) 100 (lambertian (vec3 0.5 0.5 0.5)))
(sphere (vec3 0 0 0) 0.5 glass) ; inline comment
(sphere (vec3 1 0 0) 0.5 (metal (vec3 0.8 0.6 0.2) 0.1))
(box (vec3 2 0 0) (vec3 0.5 0.5 0.5) glass)
`

func TestLoadScript(t *testing.T) {
	s, err := LoadScript(threeSpheres)
	if err != nil {
		t.Fatalf("LoadScript() error: %v", err)
	}

	if got := s.GetPrimitiveCount(); got != 4 {
		t.Errorf("Primitive count = %d, want 4", got)
	}

	cam := s.CameraConfig
	if !cam.LookFrom.Equals(core.NewVec3(0, 1, 5)) || !cam.LookAt.Equals(core.NewVec3(0, 0, 0)) {
		t.Errorf("Camera position not applied: %v -> %v", cam.LookFrom, cam.LookAt)
	}
	if cam.VFov != 35 || cam.DefocusAngle != 0.5 || cam.FocusDistance != 4.5 {
		t.Errorf("Camera lens not applied: vfov %f, defocus %f, focus %f", cam.VFov, cam.DefocusAngle, cam.FocusDistance)
	}
	if cam.Width != 320 || cam.AspectRatio != 2.0 || cam.Height() != 160 {
		t.Errorf("Image size not applied: %dx%d aspect %f", cam.Width, cam.Height(), cam.AspectRatio)
	}
	if !cam.Up.Equals(core.NewVec3(0, 1, 0)) {
		t.Errorf("Up = %v, want default (0, 1, 0)", cam.Up)
	}

	if s.SamplingConfig.SamplesPerPixel != 16 || s.SamplingConfig.MaxDepth != 8 {
		t.Errorf("Sampling = %+v, want 16 spp, depth 8", s.SamplingConfig)
	}

	ground, ok := s.World.Objects[0].(*geometry.Sphere)
	if !ok {
		t.Fatalf("First object is %T, want *geometry.Sphere", s.World.Objects[0])
	}
	if !ground.Center.Equals(core.NewVec3(0, -100.5, 0)) || ground.Radius != 100 {
		t.Errorf("Ground = %v r%f", ground.Center, ground.Radius)
	}

	// The same material value is shared by every use of the variable
	glassSphere := s.World.Objects[1].(*geometry.Sphere)
	box := s.World.Objects[3].(*geometry.Implicit)
	if _, ok := glassSphere.Material.(*material.Dielectric); !ok {
		t.Errorf("Glass sphere material is %T", glassSphere.Material)
	}
	if glassSphere.Material != box.Material {
		t.Error("Expected box and sphere to share the glass material")
	}
}

func TestLoadScript_Defaults(t *testing.T) {
	s, err := LoadScript(`(sphere (vec3 0 0 0) 1 (lambertian (vec3 0.5 0.5 0.5)))`)
	if err != nil {
		t.Fatalf("LoadScript() error: %v", err)
	}

	if s.CameraConfig != renderer.DefaultCameraConfig() {
		t.Errorf("Camera = %+v, want defaults", s.CameraConfig)
	}
	if s.SamplingConfig != renderer.DefaultSamplingConfig() {
		t.Errorf("Sampling = %+v, want defaults", s.SamplingConfig)
	}
}

func TestLoadScript_Errors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains string
	}{
		{"wrong arity", `(sphere (vec3 0 0 0) 1)`, "sphere requires 3 arguments"},
		{"wrong argument type", `(sphere (vec3 0 0 0) 1 (lambertian 0.5))`, "lambertian"},
		{"number instead of vec3", `(camera 1 (vec3 0 0 0) 40)`, "camera"},
		{"vec3 component", `(vec3 1 2 (lambertian (vec3 1 1 1)))`, "vec3"},
		{"zero refraction index", `(sphere (vec3 0 0 0) 1 (dielectric 0))`, "dielectric"},
		{"fractional samples", `(sampling 1.5 10)`, "sampling"},
		{"unbalanced parens", `(sphere (vec3 0 0 0) 1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScript(tt.source)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestLoadScript_EmptyScene(t *testing.T) {
	sources := []string{
		"",
		"  \n",
		"(camera (vec3 0 0 5) (vec3 0 0 0) 40)",
	}

	for _, source := range sources {
		if _, err := LoadScript(source); !errors.Is(err, ErrEmptyScene) {
			t.Errorf("LoadScript(%q) error = %v, want ErrEmptyScene", source, err)
		}
	}
}

func TestLoadScript_InvalidConfig(t *testing.T) {
	tests := []string{
		"(image 0 2.0)\n(sphere (vec3 0 0 0) 1 (lambertian (vec3 1 1 1)))",
		"(sampling 0 10)\n(sphere (vec3 0 0 0) 1 (lambertian (vec3 1 1 1)))",
		"(camera (vec3 0 0 0) (vec3 0 0 0) 40)\n(sphere (vec3 0 0 0) 1 (lambertian (vec3 1 1 1)))",
	}

	for _, source := range tests {
		if _, err := LoadScript(source); !errors.Is(err, renderer.ErrInvalidConfig) {
			t.Errorf("LoadScript(%q) error = %v, want ErrInvalidConfig", source, err)
		}
	}
}

func TestLoadScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "three-spheres.zy")
	if err := os.WriteFile(path, []byte(threeSpheres), 0o644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	s, err := LoadScriptFile(path)
	if err != nil {
		t.Fatalf("LoadScriptFile() error: %v", err)
	}
	if s.Name != "three-spheres" {
		t.Errorf("Name = %q, want %q", s.Name, "three-spheres")
	}

	if _, err := LoadScriptFile(filepath.Join(t.TempDir(), "missing.zy")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for missing file, got %v", err)
	}
}

func TestTranslateComments(t *testing.T) {
	tests := []struct {
		input  string
		expect string
	}{
		{";; Scene: A", "// Scene: A"},
		{"(sphere) ; trailing", "(sphere) // trailing"},
		{`(def s "a;b")`, `(def s "a;b")`},
		{`(def s "quote \" ; still string")`, `(def s "quote \" ; still string")`},
		{"(vec3 1 2 3)", "(vec3 1 2 3)"},
	}

	for _, tt := range tests {
		if got := translateComments(tt.input); got != tt.expect {
			t.Errorf("translateComments(%q) = %q, want %q", tt.input, got, tt.expect)
		}
	}
}

func TestLoadScriptFile_SampleScenes(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenes", "*.zy"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("No sample scenes found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScriptFile(path)
			if err != nil {
				t.Fatalf("LoadScriptFile() error: %v", err)
			}
			if s.GetPrimitiveCount() == 0 {
				t.Error("Expected primitives")
			}
		})
	}
}
