package scene

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// NewDefaultScene creates the material showcase: a diffuse sphere between
// a hollow glass sphere and a fuzzy gold one, seen through a thin lens
func NewDefaultScene(cameraOverrides ...renderer.CameraConfig) *Scene {
	defaultCameraConfig := renderer.CameraConfig{
		LookFrom:      core.NewVec3(-2, 2, 1),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   16.0 / 9.0,
		VFov:          20,
		DefocusAngle:  10.0,
		FocusDistance: 3.4,
	}

	s := NewScene("default")
	s.CameraConfig = applyCameraOverrides(defaultCameraConfig, cameraOverrides)
	s.SamplingConfig = renderer.SamplingConfig{
		SamplesPerPixel: 100,
		MaxDepth:        50,
	}

	materialGround := material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))
	materialCenter := material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))
	materialLeft := material.NewDielectric(1.50)
	materialBubble := material.NewDielectric(1.00 / 1.50)
	materialRight := material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 1.0)

	s.Add(
		geometry.NewSphere(core.NewVec3(0.0, -100.5, -1.0), 100.0, materialGround),
		geometry.NewSphere(core.NewVec3(0.0, 0.0, -1.2), 0.5, materialCenter),
		geometry.NewSphere(core.NewVec3(-1.0, 0.0, -1.0), 0.5, materialLeft),
		// Air bubble inside the glass makes it hollow
		geometry.NewSphere(core.NewVec3(-1.0, 0.0, -1.0), 0.4, materialBubble),
		geometry.NewSphere(core.NewVec3(1.0, 0.0, -1.0), 0.5, materialRight),
	)

	return s
}
