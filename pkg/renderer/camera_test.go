package renderer

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
)

// jitterFreeSampler returns pixel centers but still draws real lens samples
type jitterFreeSampler struct {
	random *rand.Rand
}

func (s jitterFreeSampler) Get1D() float64 { return 0.5 }

func (s jitterFreeSampler) Get2D() core.Vec2 {
	return core.NewVec2(s.random.Float64(), s.random.Float64())
}

func (s jitterFreeSampler) Get3D() core.Vec3 {
	return core.NewVec3(s.random.Float64(), s.random.Float64(), s.random.Float64())
}

func testCameraConfig() CameraConfig {
	return CameraConfig{
		LookFrom:      core.NewVec3(0, 0, 0),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		Width:         4,
		AspectRatio:   2.0,
		VFov:          90,
		FocusDistance: 1,
	}
}

func TestCameraConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *CameraConfig)
	}{
		{"zero width", func(c *CameraConfig) { c.Width = 0 }},
		{"negative width", func(c *CameraConfig) { c.Width = -5 }},
		{"zero aspect", func(c *CameraConfig) { c.AspectRatio = 0 }},
		{"NaN aspect", func(c *CameraConfig) { c.AspectRatio = math.NaN() }},
		{"infinite aspect", func(c *CameraConfig) { c.AspectRatio = math.Inf(1) }},
		{"zero fov", func(c *CameraConfig) { c.VFov = 0 }},
		{"straight fov", func(c *CameraConfig) { c.VFov = 180 }},
		{"zero focus", func(c *CameraConfig) { c.FocusDistance = 0 }},
		{"negative defocus", func(c *CameraConfig) { c.DefocusAngle = -1 }},
		{"coincident look points", func(c *CameraConfig) { c.LookAt = c.LookFrom }},
		{"zero up", func(c *CameraConfig) { c.Up = core.Vec3{} }},
		{"up along view", func(c *CameraConfig) { c.Up = core.NewVec3(0, 0, 3) }},
	}

	if err := testCameraConfig().Validate(); err != nil {
		t.Fatalf("Expected valid base config, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testCameraConfig()
			tt.modify(&config)
			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if _, err := NewCamera(config); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected NewCamera to reject config, got %v", err)
			}
		})
	}
}

func TestCameraConfigHeight(t *testing.T) {
	tests := []struct {
		width    int
		aspect   float64
		expected int
	}{
		{400, 16.0 / 9.0, 225},
		{100, 1.0, 100},
		{1, 16.0 / 9.0, 1},
		{3, 4.0, 1},
	}

	for _, tt := range tests {
		config := CameraConfig{Width: tt.width, AspectRatio: tt.aspect}
		if got := config.Height(); got != tt.expected {
			t.Errorf("Width %d aspect %f: expected height %d, got %d", tt.width, tt.aspect, tt.expected, got)
		}
	}
}

func TestMergeCameraConfig(t *testing.T) {
	merged := MergeCameraConfig(DefaultCameraConfig(), CameraConfig{Width: 64, VFov: 20})

	if merged.Width != 64 || merged.VFov != 20 {
		t.Errorf("Expected overrides to apply, got width %d vfov %f", merged.Width, merged.VFov)
	}
	if merged.AspectRatio != 16.0/9.0 || merged.FocusDistance != 10 {
		t.Errorf("Expected defaults to survive, got aspect %f focus %f", merged.AspectRatio, merged.FocusDistance)
	}
	if !merged.LookAt.Equals(core.NewVec3(0, 0, -1)) {
		t.Errorf("Expected default look-at, got %v", merged.LookAt)
	}
}

func TestCameraGetCameraForward(t *testing.T) {
	config := testCameraConfig()
	config.LookFrom = core.NewVec3(1, 2, 3)
	config.LookAt = core.NewVec3(1, 2, -7)
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	forward := camera.GetCameraForward()
	expected := core.NewVec3(0, 0, -1)
	if forward.Subtract(expected).Length() > 1e-9 {
		t.Errorf("Expected forward direction %v, got %v", expected, forward)
	}
}

func TestCameraPixelGrid(t *testing.T) {
	// 4x2 image with a 90 degree field of view at focus distance 1:
	// the viewport is 4 units wide and 2 units tall, so each pixel is 1x1.
	camera, err := NewCamera(testCameraConfig())
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}
	if camera.Width() != 4 || camera.Height() != 2 {
		t.Fatalf("Expected 4x2 image, got %dx%d", camera.Width(), camera.Height())
	}

	tests := []struct {
		i, j     int
		expected core.Vec3
	}{
		{0, 0, core.NewVec3(-1.5, 0.5, -1)}, // top left
		{3, 0, core.NewVec3(1.5, 0.5, -1)},  // top right
		{0, 1, core.NewVec3(-1.5, -0.5, -1)},
		{2, 1, core.NewVec3(0.5, -0.5, -1)},
	}

	for _, tt := range tests {
		ray := camera.GetCenterRay(tt.i, tt.j)
		if !ray.Origin.Equals(core.NewVec3(0, 0, 0)) {
			t.Errorf("Pixel (%d,%d): expected origin at camera center, got %v", tt.i, tt.j, ray.Origin)
		}
		if ray.Direction.Subtract(tt.expected).Length() > 1e-9 {
			t.Errorf("Pixel (%d,%d): expected direction %v, got %v", tt.i, tt.j, tt.expected, ray.Direction)
		}
	}
}

func TestCameraGetRay_JitterStaysInPixel(t *testing.T) {
	camera, err := NewCamera(testCameraConfig())
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))

	center := camera.GetCenterRay(1, 0).Direction
	for n := 0; n < 200; n++ {
		ray := camera.GetRay(1, 0, sampler)
		if !ray.Origin.Equals(core.NewVec3(0, 0, 0)) {
			t.Fatalf("Pinhole ray must start at the camera center, got %v", ray.Origin)
		}
		// Pixel squares are 1x1 on the z = -1 plane
		offset := ray.Direction.Subtract(center)
		if math.Abs(offset.X) > 0.5 || math.Abs(offset.Y) > 0.5 || math.Abs(offset.Z) > 1e-9 {
			t.Fatalf("Jittered sample %v left the pixel around %v", ray.Direction, center)
		}
	}

	// A sampler that always returns 0.5 gives the pixel center
	ray := camera.GetRay(1, 0, jitterFreeSampler{})
	if ray.Direction.Subtract(center).Length() > 1e-9 {
		t.Errorf("Expected unjittered ray %v, got %v", center, ray.Direction)
	}
}

func TestCameraGetRay_Defocus(t *testing.T) {
	config := testCameraConfig()
	config.DefocusAngle = 10
	config.FocusDistance = 3.4
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	sampler := jitterFreeSampler{random: rand.New(rand.NewSource(42))}
	radius := config.FocusDistance * math.Tan(10.0*math.Pi/180/2)
	focusPoint := camera.GetCenterRay(2, 1).At(1)

	distinctOrigins := 0
	for n := 0; n < 200; n++ {
		ray := camera.GetRay(2, 1, sampler)
		if ray.Origin.Length() > radius+1e-9 {
			t.Fatalf("Lens sample %v outside aperture radius %f", ray.Origin, radius)
		}
		if math.Abs(ray.Origin.Z) > 1e-9 {
			t.Fatalf("Lens sample %v is not on the lens plane", ray.Origin)
		}
		// Every lens sample converges on the same point of the focus plane
		if ray.At(1).Subtract(focusPoint).Length() > 1e-9 {
			t.Fatalf("Expected ray to pass through %v, got %v", focusPoint, ray.At(1))
		}
		if !ray.Origin.Equals(core.NewVec3(0, 0, 0)) {
			distinctOrigins++
		}
	}
	if distinctOrigins == 0 {
		t.Error("Expected defocus to move the ray origin")
	}
}
