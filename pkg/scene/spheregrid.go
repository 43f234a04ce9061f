package scene

import (
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// oklchToRGB converts OKLCH color values to linear RGB clamped to [0, 1].
// L: lightness (0-1), C: chroma (0-0.4+), H: hue (0-360 degrees)
func oklchToRGB(l, c, h float64) core.Vec3 {
	// Convert hue from degrees to radians
	hRad := h * math.Pi / 180.0

	// Convert from OKLCH to OKLAB
	a := c * math.Cos(hRad)
	b := c * math.Sin(hRad)

	// OKLAB to non-linear LMS
	l_ := l + 0.3963377774*a + 0.2158037573*b
	m_ := l - 0.1055613458*a - 0.0638541728*b
	s_ := l - 0.0894841775*a - 1.2914855480*b

	l_ = l_ * l_ * l_
	m_ = m_ * m_ * m_
	s_ = s_ * s_ * s_

	// Convert LMS to linear RGB
	r := +4.0767416621*l_ - 3.3077115913*m_ + 0.2309699292*s_
	g := -1.2684380046*l_ + 2.6097574011*m_ - 0.3413193965*s_
	blue := -0.0041960863*l_ - 0.7034186147*m_ + 1.7076147010*s_

	unit := core.NewInterval(0, 1)
	return core.NewVec3(unit.Clamp(r), unit.Clamp(g), unit.Clamp(blue))
}

// NewSphereGridScene creates a 20x20 grid of metal spheres whose colors sweep OKLCH hue and chroma
func NewSphereGridScene(cameraOverrides ...renderer.CameraConfig) *Scene {
	lookFrom := core.NewVec3(4.5, 6, 18)
	lookAt := core.NewVec3(4.5, 0.8, 4.5)
	defaultCameraConfig := renderer.CameraConfig{
		LookFrom:      lookFrom,
		LookAt:        lookAt,
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   16.0 / 9.0,
		VFov:          40.0,
		DefocusAngle:  0.3, // Slight depth of field
		FocusDistance: lookFrom.Subtract(lookAt).Length(),
	}

	s := NewScene("spheregrid")
	s.CameraConfig = applyCameraOverrides(defaultCameraConfig, cameraOverrides)
	s.SamplingConfig = renderer.SamplingConfig{
		SamplesPerPixel: 100,
		MaxDepth:        40,
	}

	// Ground is a huge gray sphere whose top touches y = 0
	s.Add(geometry.NewSphere(core.NewVec3(4.5, -1000, 4.5), 1000, material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))))

	gridSize := 20

	// Fit the grid into a 9x9 area around the look-at point
	targetArea := 9.0
	spacing := targetArea / float64(gridSize-1)
	sphereRadius := min(0.35, max(0.02, spacing*0.35))

	baseLightness := 0.65
	minChroma := 0.05
	maxChroma := 0.25

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			x := float64(i)*spacing - targetArea/2.0 + 4.5
			z := float64(j)*spacing - targetArea/2.0 + 4.5
			position := core.NewVec3(x, sphereRadius, z)

			// Hue sweeps along X, chroma along Z
			hue := (float64(i) / float64(gridSize-1)) * 360.0
			chroma := minChroma + (float64(j)/float64(gridSize-1))*(maxChroma-minChroma)
			lightness := baseLightness + 0.1*math.Sin(float64(i+j)*0.5)

			roughness := 0.05 + 0.1*float64((i+j)%3)/2.0
			metalMaterial := material.NewMetal(oklchToRGB(lightness, chroma, hue), roughness)

			s.Add(geometry.NewSphere(position, sphereRadius, metalMaterial))
		}
	}

	return s
}
