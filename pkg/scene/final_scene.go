package scene

import (
	"math/rand"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// FinalSceneSeed is the layout seed used by the registered "final" scene
const FinalSceneSeed int64 = 42

// NewFinalScene creates the random sphere field: a 22x22 grid of jittered small spheres
// with random materials, plus one large glass, diffuse and mirror sphere.
// The same seed always produces the same layout.
func NewFinalScene(seed int64, cameraOverrides ...renderer.CameraConfig) *Scene {
	defaultCameraConfig := renderer.CameraConfig{
		LookFrom:      core.NewVec3(13, 2, 3),
		LookAt:        core.NewVec3(0, 0, 0),
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   16.0 / 9.0,
		VFov:          20,
		DefocusAngle:  0.6,
		FocusDistance: 10.0,
	}

	s := NewScene("final")
	s.CameraConfig = applyCameraOverrides(defaultCameraConfig, cameraOverrides)
	s.SamplingConfig = renderer.SamplingConfig{
		SamplesPerPixel: 100,
		MaxDepth:        50,
	}

	random := rand.New(rand.NewSource(seed))
	randomIn := func(lo, hi float64) float64 {
		return lo + (hi-lo)*random.Float64()
	}
	randomColor := func(lo, hi float64) core.Vec3 {
		return core.NewVec3(randomIn(lo, hi), randomIn(lo, hi), randomIn(lo, hi))
	}

	groundMaterial := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	s.Add(geometry.NewSphere(core.NewVec3(0, -1000, 0), 1000, groundMaterial))

	// Glass is clear, so every small glass sphere can share one material
	glass := material.NewDielectric(1.5)
	keepClear := core.NewVec3(4, 0.2, 0)

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := random.Float64()
			center := core.NewVec3(float64(a)+0.9*random.Float64(), 0.2, float64(b)+0.9*random.Float64())

			if center.Subtract(keepClear).Length() <= 0.9 {
				continue
			}

			var sphereMaterial core.Material
			switch {
			case chooseMat < 0.8:
				// diffuse
				albedo := randomColor(0, 1).MultiplyVec(randomColor(0, 1))
				sphereMaterial = material.NewLambertian(albedo)
			case chooseMat < 0.95:
				// metal
				sphereMaterial = material.NewMetal(randomColor(0.5, 1), randomIn(0, 0.5))
			default:
				sphereMaterial = glass
			}
			s.Add(geometry.NewSphere(center, 0.2, sphereMaterial))
		}
	}

	s.Add(
		geometry.NewSphere(core.NewVec3(0, 1, 0), 1.0, glass),
		geometry.NewSphere(core.NewVec3(-4, 1, 0), 1.0, material.NewLambertian(core.NewVec3(0.4, 0.2, 0.1))),
		geometry.NewSphere(core.NewVec3(4, 1, 0), 1.0, material.NewMetal(core.NewVec3(0.7, 0.6, 0.5), 0.0)),
	)

	return s
}
