package material

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
)

func TestDielectricBasicBehavior(t *testing.T) {
	glass := NewDielectric(1.5)

	rayDirection := core.NewVec3(1, -1, 0).Unit() // 45-degree angle
	ray := core.Ray{Origin: core.NewVec3(0, 1, 0), Direction: rayDirection}

	hit := core.HitRecord{
		Point:     core.NewVec3(0, 0, 0),
		Normal:    core.NewVec3(0, 1, 0),
		T:         1.0,
		FrontFace: true,
		Material:  glass,
	}

	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))
	result, scattered := glass.Scatter(ray, hit, sampler)

	if !scattered {
		t.Error("Dielectric should always scatter")
	}

	expectedAttenuation := core.NewVec3(1.0, 1.0, 1.0)
	if result.Attenuation != expectedAttenuation {
		t.Errorf("Expected attenuation %v, got %v", expectedAttenuation, result.Attenuation)
	}

	if result.Scattered.Origin != hit.Point {
		t.Errorf("Scattered ray should start at hit point, got %v", result.Scattered.Origin)
	}

	// Refraction must show up; reflection at 45 degrees is only ~5% likely
	hasRefraction := false
	for seed := int64(0); seed < 100 && !hasRefraction; seed++ {
		sampler := core.NewRandomSampler(rand.New(rand.NewSource(seed)))
		result, _ := glass.Scatter(ray, hit, sampler)

		// Refraction bends toward the normal, so the ray gets steeper
		if result.Scattered.Direction.Unit().Y < -0.75 {
			hasRefraction = true
		}
	}

	if !hasRefraction {
		t.Error("Expected to see refraction in at least some cases")
	}
}

func TestDielectricTotalInternalReflection(t *testing.T) {
	glass := NewDielectric(1.5)

	// Shallow ray leaving the glass
	rayDirection := core.NewVec3(1, -0.1, 0).Unit()
	ray := core.Ray{Origin: core.NewVec3(0, 0, 0), Direction: rayDirection}

	hit := core.HitRecord{
		Point:     core.NewVec3(0, 0, 0),
		Normal:    core.NewVec3(0, 1, 0),
		T:         1.0,
		FrontFace: false,
		Material:  glass,
	}

	cosTheta := -rayDirection.Dot(hit.Normal)
	sinTheta := math.Sqrt(1.0 - cosTheta*cosTheta)
	if 1.5*sinTheta <= 1.0 {
		t.Fatalf("Test setup error: this angle should cause total internal reflection")
	}

	for i := 0; i < 10; i++ {
		sampler := core.NewRandomSampler(rand.New(rand.NewSource(int64(i))))
		result, scattered := glass.Scatter(ray, hit, sampler)

		if !scattered {
			t.Error("Dielectric should always scatter")
		}

		// Reflection off a horizontal surface flips Y and keeps X
		if result.Scattered.Direction.Y <= 0 {
			t.Errorf("Expected total internal reflection (ray going up), got %v", result.Scattered.Direction)
		}
		if math.Abs(result.Scattered.Direction.X-rayDirection.X) > 1e-10 {
			t.Errorf("Expected X component %.6f, got %.6f", rayDirection.X, result.Scattered.Direction.X)
		}
	}
}

func TestDielectricUnitIndexIsIdentity(t *testing.T) {
	matched := NewDielectric(1.0)
	directions := []core.Vec3{
		core.NewVec3(0, -1, 0),
		core.NewVec3(1, -1, 0),
		core.NewVec3(3, -0.2, 1),
	}

	for _, frontFace := range []bool{true, false} {
		for _, dir := range directions {
			hit := core.HitRecord{
				Point:     core.NewVec3(0, 0, 0),
				Normal:    core.NewVec3(0, 1, 0),
				FrontFace: frontFace,
				Material:  matched,
			}
			ray := core.NewRay(core.NewVec3(0, 1, 0), dir)

			for seed := int64(0); seed < 20; seed++ {
				sampler := core.NewRandomSampler(rand.New(rand.NewSource(seed)))
				result, scattered := matched.Scatter(ray, hit, sampler)
				if !scattered {
					t.Fatal("Dielectric should always scatter")
				}
				if result.Scattered.Direction.Subtract(dir.Unit()).Length() > 1e-12 {
					t.Errorf("frontFace=%t: expected undeviated %v, got %v",
						frontFace, dir.Unit(), result.Scattered.Direction)
				}
			}
		}
	}
}

func TestReflectanceFunction(t *testing.T) {
	// Normal incidence: ~4% for air->glass
	r0 := Reflectance(1.0, 1.0/1.5)
	if r0 < 0.03 || r0 > 0.06 {
		t.Errorf("Normal incidence reflectance = %.3f, expected ~0.04", r0)
	}

	// Grazing incidence: close to 1
	r90 := Reflectance(0.0, 1.0/1.5)
	if r90 < 0.95 {
		t.Errorf("Grazing incidence reflectance = %.3f, expected close to 1.0", r90)
	}

	r45 := Reflectance(0.707, 1.0/1.5)
	if r45 <= r0 || r90 <= r45 {
		t.Errorf("Reflectance should increase with angle: R(0°)=%.3f, R(45°)=%.3f, R(90°)=%.3f", r0, r45, r90)
	}

	if r := Reflectance(0.2, 1.0); r != 0 {
		t.Errorf("Index-matched reflectance should be 0, got %f", r)
	}
}
