package core

import (
	"errors"
	"math"
	"math/rand"
)

// MaxRejectionAttempts bounds the rejection sampling loops below
const MaxRejectionAttempts = 1 << 16

// ErrSamplingExhausted is the panic value when a rejection loop never accepts a draw.
// It only happens with a broken random source.
var ErrSamplingExhausted = errors.New("core: rejection sampling exhausted its attempt budget")

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// RandomUnitVector returns a uniformly distributed direction on the unit sphere.
// Points in [-1,1]^3 are rejected until one lands inside the unit ball (p(accept) = pi/6).
// Tiny vectors are rejected too so the normalization stays finite.
func RandomUnitVector(sampler Sampler) Vec3 {
	for range MaxRejectionAttempts {
		u := sampler.Get3D()
		p := NewVec3(2*u.X-1, 2*u.Y-1, 2*u.Z-1)
		lensq := p.LengthSquared()
		if 1e-160 < lensq && lensq <= 1 {
			return p.Divide(math.Sqrt(lensq))
		}
	}
	panic(ErrSamplingExhausted)
}

// RandomInUnitDisk returns a uniformly distributed point in the unit disk on z = 0.
// Points in [-1,1]^2 are rejected until one lands inside (p(accept) = pi/4).
func RandomInUnitDisk(sampler Sampler) Vec3 {
	for range MaxRejectionAttempts {
		u := sampler.Get2D()
		p := NewVec3(2*u.X-1, 2*u.Y-1, 0)
		if p.LengthSquared() < 1 {
			return p
		}
	}
	panic(ErrSamplingExhausted)
}
