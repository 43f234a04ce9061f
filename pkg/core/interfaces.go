package core

// Logger interface for raytracer logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// Hittable is anything a ray can intersect
type Hittable interface {
	// Hit reports the nearest intersection with t strictly inside rayT.
	// rec is only written when Hit returns true.
	Hit(ray Ray, rayT Interval, rec *HitRecord) bool
}

// Material interface for surfaces that can scatter rays
type Material interface {
	// Scatter returns the scattered ray and its attenuation, or false if the ray is absorbed
	Scatter(rayIn Ray, hit HitRecord, sampler Sampler) (ScatterResult, bool)
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Scattered   Ray  // The scattered ray
	Attenuation Vec3 // Color attenuation
}

// HitRecord contains information about a ray-object intersection
type HitRecord struct {
	Point     Vec3     // Point of intersection
	Normal    Vec3     // Unit normal, always facing against the incoming ray
	T         float64  // Parameter t along the ray
	FrontFace bool     // Whether ray hit the outside of the surface
	Material  Material // Material of the hit object
}

// SetFaceNormal sets the normal vector and determines front/back face.
// outwardNormal must be unit length.
func (h *HitRecord) SetFaceNormal(ray Ray, outwardNormal Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}
