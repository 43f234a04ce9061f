package scene

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// NewSDFShapesScene lines up implicit solids built from signed distance fields:
// a rounded metal box, a glass cylinder, and a diffuse cube with a sphere carved out of it.
func NewSDFShapesScene(cameraOverrides ...renderer.CameraConfig) (*Scene, error) {
	defaultCameraConfig := renderer.CameraConfig{
		LookFrom:      core.NewVec3(0, 2.2, 6),
		LookAt:        core.NewVec3(0, 0.5, 0),
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   16.0 / 9.0,
		VFov:          35,
		FocusDistance: 6,
	}

	s := NewScene("sdf-shapes")
	s.CameraConfig = applyCameraOverrides(defaultCameraConfig, cameraOverrides)
	s.SamplingConfig = renderer.SamplingConfig{
		SamplesPerPixel: 64,
		MaxDepth:        20,
	}

	s.Add(geometry.NewSphere(core.NewVec3(0, -1000, 0), 1000, material.NewLambertian(core.NewVec3(0.45, 0.5, 0.45))))

	box, err := geometry.NewImplicitBox(core.NewVec3(-1.7, 0.5, 0), core.NewVec3(1, 1, 1), 0.1,
		material.NewMetal(core.NewVec3(0.8, 0.7, 0.6), 0.05))
	if err != nil {
		return nil, err
	}

	cylinder, err := geometry.NewImplicitCylinder(core.NewVec3(0, 0.6, 0), 1.2, 0.5, 0.05, material.NewDielectric(1.5))
	if err != nil {
		return nil, err
	}

	carved, err := carvedCube(core.NewVec3(1.7, 0.5, 0), 0.9)
	if err != nil {
		return nil, err
	}

	s.Add(box, cylinder, geometry.NewImplicit(carved, material.NewLambertian(core.NewVec3(0.7, 0.25, 0.2))))
	return s, nil
}

// carvedCube subtracts a sphere from a cube so the sphere bites through every face
func carvedCube(center core.Vec3, size float64) (sdf.SDF3, error) {
	cube, err := sdf.Box3D(v3.Vec{X: size, Y: size, Z: size}, 0)
	if err != nil {
		return nil, fmt.Errorf("carved cube: %w", err)
	}
	hole, err := sdf.Sphere3D(size * 0.65)
	if err != nil {
		return nil, fmt.Errorf("carved cube: %w", err)
	}
	solid := sdf.Difference3D(cube, hole)
	return sdf.Transform3D(solid, sdf.Translate3d(v3.Vec{X: center.X, Y: center.Y, Z: center.Z})), nil
}
