package integrator

import (
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// HitInterval is the range of ray parameters accepted for scene hits.
// The lower bound skips self-intersections at the origin of scattered rays.
var HitInterval = core.NewInterval(0.001, math.Inf(1))

var (
	skyTop    = core.NewVec3(0.5, 0.7, 1.0)
	skyBottom = core.NewVec3(1.0, 1.0, 1.0)
)

// PathTracingIntegrator implements unidirectional path tracing with a fixed bounce limit
type PathTracingIntegrator struct {
	MaxDepth int
}

// NewPathTracingIntegrator creates a new path tracing integrator
func NewPathTracingIntegrator(maxDepth int) *PathTracingIntegrator {
	return &PathTracingIntegrator{MaxDepth: maxDepth}
}

// Li returns the radiance carried back along a camera ray
func (pt *PathTracingIntegrator) Li(ray core.Ray, world core.Hittable, sampler core.Sampler) core.Vec3 {
	return pt.RayColor(ray, world, sampler, pt.MaxDepth)
}

// RayColor computes the color for a single ray.
// Each bounce multiplies in the material attenuation; absorption and an exhausted depth give black.
func (pt *PathTracingIntegrator) RayColor(ray core.Ray, world core.Hittable, sampler core.Sampler, depth int) core.Vec3 {
	// If we've exceeded the ray bounce limit, no more light is gathered
	if depth <= 0 {
		return core.Vec3{}
	}

	var rec core.HitRecord
	if !world.Hit(ray, HitInterval, &rec) {
		return BackgroundGradient(ray)
	}

	if rec.Material == nil {
		return core.Vec3{}
	}
	scatter, didScatter := rec.Material.Scatter(ray, rec, sampler)
	if !didScatter {
		return core.Vec3{}
	}

	return scatter.Attenuation.MultiplyVec(pt.RayColor(scatter.Scattered, world, sampler, depth-1))
}

// BackgroundGradient returns the sky color for a ray that escapes the scene.
// The y-component of the unit direction blends white at the horizon into blue overhead.
func BackgroundGradient(r core.Ray) core.Vec3 {
	unitDirection := r.Direction.Unit()
	a := 0.5 * (unitDirection.Y + 1.0)
	return skyBottom.Multiply(1.0 - a).Add(skyTop.Multiply(a))
}
