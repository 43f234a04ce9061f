package geometry

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/df07/go-pathtracer/pkg/core"
)

const (
	// MaxMarchSteps bounds the sphere-tracing loop of a single Hit call
	MaxMarchSteps = 512
	// surfaceEpsilon is the distance at which the march counts as touching the surface
	surfaceEpsilon = 1e-4
	// gradientStep is the central difference offset used for normals
	gradientStep = 1e-5
)

// Implicit is a surface defined by a signed distance field.
// The field is negative inside, positive outside, and must never overestimate the true distance.
type Implicit struct {
	SDF      sdf.SDF3
	Material core.Material
	min, max core.Vec3 // cached bounding box
}

// NewImplicit wraps an sdfx solid as a hittable
func NewImplicit(s sdf.SDF3, material core.Material) *Implicit {
	bb := s.BoundingBox()
	pad := core.NewVec3(4*surfaceEpsilon, 4*surfaceEpsilon, 4*surfaceEpsilon)
	return &Implicit{
		SDF:      s,
		Material: material,
		min:      fromV3(bb.Min).Subtract(pad),
		max:      fromV3(bb.Max).Add(pad),
	}
}

// NewImplicitSphere creates a sphere solid centered at center
func NewImplicitSphere(center core.Vec3, radius float64, material core.Material) (*Implicit, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("implicit sphere: %w", err)
	}
	return NewImplicit(sdf.Transform3D(s, sdf.Translate3d(toV3(center))), material), nil
}

// NewImplicitBox creates an axis-aligned box with the given full size and corner rounding
func NewImplicitBox(center, size core.Vec3, round float64, material core.Material) (*Implicit, error) {
	s, err := sdf.Box3D(toV3(size), round)
	if err != nil {
		return nil, fmt.Errorf("implicit box: %w", err)
	}
	return NewImplicit(sdf.Transform3D(s, sdf.Translate3d(toV3(center))), material), nil
}

// NewImplicitCylinder creates an upright (Y axis) cylinder with the given height and radius
func NewImplicitCylinder(center core.Vec3, height, radius, round float64, material core.Material) (*Implicit, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("implicit cylinder: %w", err)
	}
	// sdfx cylinders run along Z
	m := sdf.Translate3d(toV3(center)).Mul(sdf.RotateX(math.Pi / 2))
	return NewImplicit(sdf.Transform3D(s, m), material), nil
}

// Hit sphere-traces the distance field along the ray inside the bounding box
func (im *Implicit) Hit(ray core.Ray, rayT core.Interval, rec *core.HitRecord) bool {
	dirLen := ray.Direction.Length()
	if dirLen == 0 {
		return false
	}
	dir := ray.Direction.Divide(dirLen)

	// March in world distance units along the unit direction
	enter, exit, ok := im.slabs(ray.Origin, dir)
	if !ok {
		return false
	}
	enter = max(enter, rayT.Min*dirLen)
	exit = min(exit, rayT.Max*dirLen)
	if enter > exit {
		return false
	}

	// Rays leaving this surface must clear the epsilon shell before they can hit again.
	// Rays that start inside the solid look for the exit surface.
	startDist := im.distance(ray.Origin)
	departed := math.Abs(startDist) >= 2*surfaceEpsilon
	sign := 1.0
	if departed && startDist < 0 {
		sign = -1.0
	} else if !departed && im.distance(ray.Origin.Add(dir.Multiply(8*surfaceEpsilon))) < 0 {
		sign = -1.0
	}

	s := enter
	for range MaxMarchSteps {
		d := sign * im.distance(ray.Origin.Add(dir.Multiply(s)))
		if d < surfaceEpsilon {
			if departed {
				t := s / dirLen
				if !rayT.Surrounds(t) {
					return false
				}
				rec.T = t
				rec.Point = ray.At(t)
				rec.SetFaceNormal(ray, im.normal(rec.Point, dir))
				rec.Material = im.Material
				return true
			}
		} else {
			departed = true
		}

		s += max(math.Abs(d), surfaceEpsilon)
		if s > exit {
			return false
		}
	}

	return false
}

// distance evaluates the field at p
func (im *Implicit) distance(p core.Vec3) float64 {
	return im.SDF.Evaluate(toV3(p))
}

// normal estimates the outward normal from the field gradient
func (im *Implicit) normal(p, dir core.Vec3) core.Vec3 {
	dx := core.NewVec3(gradientStep, 0, 0)
	dy := core.NewVec3(0, gradientStep, 0)
	dz := core.NewVec3(0, 0, gradientStep)
	grad := core.NewVec3(
		im.distance(p.Add(dx))-im.distance(p.Subtract(dx)),
		im.distance(p.Add(dy))-im.distance(p.Subtract(dy)),
		im.distance(p.Add(dz))-im.distance(p.Subtract(dz)),
	)
	if grad.NearZero() {
		// Flat spot in the field: face the ray
		return dir.Negate()
	}
	return grad.Unit()
}

// slabs intersects a unit-direction ray with the cached bounding box
func (im *Implicit) slabs(origin, dir core.Vec3) (float64, float64, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)
	axes := [3][4]float64{
		{origin.X, dir.X, im.min.X, im.max.X},
		{origin.Y, dir.Y, im.min.Y, im.max.Y},
		{origin.Z, dir.Z, im.min.Z, im.max.Z},
	}
	for _, a := range axes {
		o, d, lo, hi := a[0], a[1], a[2], a[3]
		if math.Abs(d) < 1e-12 {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		t0, t1 := (lo-o)/d, (hi-o)/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

func toV3(v core.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromV3(v v3.Vec) core.Vec3 {
	return core.NewVec3(v.X, v.Y, v.Z)
}
