package renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// ErrInvalidConfig is wrapped by every configuration validation failure
var ErrInvalidConfig = errors.New("invalid render configuration")

// CameraConfig contains all parameters needed to create a camera
type CameraConfig struct {
	LookFrom      core.Vec3 // Camera position
	LookAt        core.Vec3 // Point the camera is looking at
	Up            core.Vec3 // Up direction (usually (0,1,0))
	Width         int       // Image width in pixels
	AspectRatio   float64   // Width / height ratio
	VFov          float64   // Vertical field of view in degrees
	DefocusAngle  float64   // Variation angle of rays through each pixel in degrees (0 = pinhole)
	FocusDistance float64   // Distance from camera to the plane of perfect focus
}

// DefaultCameraConfig returns the classic pinhole setup looking down -Z
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		LookFrom:      core.NewVec3(0, 0, 0),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   16.0 / 9.0,
		VFov:          90,
		DefocusAngle:  0,
		FocusDistance: 10,
	}
}

// MergeCameraConfig returns base with every non-zero field of override applied
func MergeCameraConfig(base, override CameraConfig) CameraConfig {
	result := base
	if override.LookFrom != (core.Vec3{}) {
		result.LookFrom = override.LookFrom
	}
	if override.LookAt != (core.Vec3{}) {
		result.LookAt = override.LookAt
	}
	if override.Up != (core.Vec3{}) {
		result.Up = override.Up
	}
	if override.Width != 0 {
		result.Width = override.Width
	}
	if override.AspectRatio != 0 {
		result.AspectRatio = override.AspectRatio
	}
	if override.VFov != 0 {
		result.VFov = override.VFov
	}
	if override.DefocusAngle != 0 {
		result.DefocusAngle = override.DefocusAngle
	}
	if override.FocusDistance != 0 {
		result.FocusDistance = override.FocusDistance
	}
	return result
}

// Height returns the image height implied by width and aspect ratio, never less than 1
func (c CameraConfig) Height() int {
	return max(1, int(float64(c.Width)/c.AspectRatio))
}

// Validate reports the first parameter that cannot produce a camera
func (c CameraConfig) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("%w: image width must be positive, got %d", ErrInvalidConfig, c.Width)
	}
	if !(c.AspectRatio > 0) || math.IsInf(c.AspectRatio, 0) {
		return fmt.Errorf("%w: aspect ratio must be positive and finite, got %g", ErrInvalidConfig, c.AspectRatio)
	}
	if !(c.VFov > 0 && c.VFov < 180) {
		return fmt.Errorf("%w: vertical field of view must be in (0, 180) degrees, got %g", ErrInvalidConfig, c.VFov)
	}
	if !(c.FocusDistance > 0) {
		return fmt.Errorf("%w: focus distance must be positive, got %g", ErrInvalidConfig, c.FocusDistance)
	}
	if !(c.DefocusAngle >= 0) {
		return fmt.Errorf("%w: defocus angle must not be negative, got %g", ErrInvalidConfig, c.DefocusAngle)
	}
	view := c.LookFrom.Subtract(c.LookAt)
	if view.LengthSquared() == 0 {
		return fmt.Errorf("%w: look-from and look-at are the same point %v", ErrInvalidConfig, c.LookFrom)
	}
	if c.Up.LengthSquared() == 0 {
		return fmt.Errorf("%w: up vector must be non-zero", ErrInvalidConfig)
	}
	if c.Up.Unit().Cross(view.Unit()).Length() < 1e-9 {
		return fmt.Errorf("%w: up vector %v is parallel to the view direction", ErrInvalidConfig, c.Up)
	}
	return nil
}

// Camera generates rays for rendering.
// All fields are derived once by NewCamera and never change.
type Camera struct {
	config      CameraConfig
	imageHeight int
	center      core.Vec3 // Camera center
	pixel00Loc  core.Vec3 // Location of pixel 0, 0
	pixelDeltaU core.Vec3 // Offset to pixel to the right
	pixelDeltaV core.Vec3 // Offset to pixel below
	u, v, w     core.Vec3 // Camera frame basis vectors
	defocusU    core.Vec3 // Defocus disk horizontal radius
	defocusV    core.Vec3 // Defocus disk vertical radius
}

// NewCamera validates the config and derives the camera geometry
func NewCamera(config CameraConfig) (*Camera, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	imageWidth := config.Width
	imageHeight := config.Height()
	center := config.LookFrom

	// Viewport dimensions on the focus plane
	theta := degreesToRadians(config.VFov)
	h := math.Tan(theta / 2)
	viewportHeight := 2 * h * config.FocusDistance
	viewportWidth := viewportHeight * (float64(imageWidth) / float64(imageHeight))

	// Orthonormal camera basis
	w := config.LookFrom.Subtract(config.LookAt).Unit()
	u := config.Up.Cross(w).Unit()
	v := w.Cross(u)

	// Viewport edges: U runs left to right, V runs top to bottom
	viewportU := u.Multiply(viewportWidth)
	viewportV := v.Negate().Multiply(viewportHeight)

	pixelDeltaU := viewportU.Divide(float64(imageWidth))
	pixelDeltaV := viewportV.Divide(float64(imageHeight))

	viewportUpperLeft := center.
		Subtract(w.Multiply(config.FocusDistance)).
		Subtract(viewportU.Divide(2)).
		Subtract(viewportV.Divide(2))
	pixel00Loc := viewportUpperLeft.Add(pixelDeltaU.Add(pixelDeltaV).Multiply(0.5))

	defocusRadius := config.FocusDistance * math.Tan(degreesToRadians(config.DefocusAngle/2))

	return &Camera{
		config:      config,
		imageHeight: imageHeight,
		center:      center,
		pixel00Loc:  pixel00Loc,
		pixelDeltaU: pixelDeltaU,
		pixelDeltaV: pixelDeltaV,
		u:           u,
		v:           v,
		w:           w,
		defocusU:    u.Multiply(defocusRadius),
		defocusV:    v.Multiply(defocusRadius),
	}, nil
}

// Width returns the image width in pixels
func (c *Camera) Width() int {
	return c.config.Width
}

// Height returns the image height in pixels
func (c *Camera) Height() int {
	return c.imageHeight
}

// Config returns the configuration the camera was built from
func (c *Camera) Config() CameraConfig {
	return c.config
}

// GetRay returns a camera ray for pixel (i, j), jittered inside the pixel square.
// The origin is sampled from the defocus disk when the lens has an aperture.
func (c *Camera) GetRay(i, j int, sampler core.Sampler) core.Ray {
	offsetX := sampler.Get1D() - 0.5
	offsetY := sampler.Get1D() - 0.5
	pixelSample := c.pixel00Loc.
		Add(c.pixelDeltaU.Multiply(float64(i) + offsetX)).
		Add(c.pixelDeltaV.Multiply(float64(j) + offsetY))

	rayOrigin := c.center
	if c.config.DefocusAngle > 0 {
		rayOrigin = c.defocusDiskSample(sampler)
	}

	return core.NewRay(rayOrigin, pixelSample.Subtract(rayOrigin))
}

// GetCenterRay returns the unjittered pinhole ray through the center of pixel (i, j)
func (c *Camera) GetCenterRay(i, j int) core.Ray {
	pixelCenter := c.pixel00Loc.
		Add(c.pixelDeltaU.Multiply(float64(i))).
		Add(c.pixelDeltaV.Multiply(float64(j)))
	return core.NewRay(c.center, pixelCenter.Subtract(c.center))
}

// GetCameraForward returns the unit viewing direction
func (c *Camera) GetCameraForward() core.Vec3 {
	return c.w.Negate()
}

// defocusDiskSample returns a random point on the camera's defocus disk
func (c *Camera) defocusDiskSample(sampler core.Sampler) core.Vec3 {
	p := core.RandomInUnitDisk(sampler)
	return c.center.Add(c.defocusU.Multiply(p.X)).Add(c.defocusV.Multiply(p.Y))
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
