package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// marchTolerance covers the surface epsilon of the sphere tracer
const marchTolerance = 1e-3

func TestImplicitSphere_MatchesAnalytic(t *testing.T) {
	mat := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	implicit, err := NewImplicitSphere(core.NewVec3(0, 0, 0), 1.0, mat)
	if err != nil {
		t.Fatalf("NewImplicitSphere failed: %v", err)
	}
	analytic := NewSphere(core.NewVec3(0, 0, 0), 1.0, mat)

	rays := []core.Ray{
		core.NewRay(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1)),
		core.NewRay(core.NewVec3(0.5, 0.3, 4), core.NewVec3(0, 0, -2)),
		core.NewRay(core.NewVec3(3, 3, 3), core.NewVec3(-1, -1, -1)),
		core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0)),
	}

	for i, ray := range rays {
		var want, got core.HitRecord
		if !analytic.Hit(ray, defaultRange, &want) {
			t.Fatalf("ray %d: analytic sphere missed", i)
		}
		if !implicit.Hit(ray, defaultRange, &got) {
			t.Fatalf("ray %d: implicit sphere missed", i)
		}
		if math.Abs(got.T-want.T) > marchTolerance {
			t.Errorf("ray %d: expected t=%f, got %f", i, want.T, got.T)
		}
		if got.Normal.Subtract(want.Normal).Length() > marchTolerance {
			t.Errorf("ray %d: expected normal %v, got %v", i, want.Normal, got.Normal)
		}
		if got.FrontFace != want.FrontFace {
			t.Errorf("ray %d: expected front face %t, got %t", i, want.FrontFace, got.FrontFace)
		}
		if got.Material != mat {
			t.Errorf("ray %d: expected sphere material", i)
		}
	}
}

func TestImplicitBox_Hit(t *testing.T) {
	box, err := NewImplicitBox(core.NewVec3(0, 0, -3), core.NewVec3(2, 2, 2), 0, nil)
	if err != nil {
		t.Fatalf("NewImplicitBox failed: %v", err)
	}

	var rec core.HitRecord
	ray := core.NewRay(core.NewVec3(0.2, -0.4, 0), core.NewVec3(0, 0, -1))
	if !box.Hit(ray, defaultRange, &rec) {
		t.Fatal("Expected hit on box face")
	}
	if math.Abs(rec.T-2) > marchTolerance {
		t.Errorf("Expected t=2, got %f", rec.T)
	}
	if rec.Normal.Subtract(core.NewVec3(0, 0, 1)).Length() > marchTolerance {
		t.Errorf("Expected normal (0,0,1), got %v", rec.Normal)
	}

	miss := core.NewRay(core.NewVec3(5, 0, 0), core.NewVec3(0, 0, -1))
	if box.Hit(miss, defaultRange, &rec) {
		t.Error("Expected ray beside the box to miss")
	}

	// Interval ends before the box
	if box.Hit(ray, core.NewInterval(0.001, 1.5), &rec) {
		t.Error("Expected miss when the interval ends before the surface")
	}
}

func TestImplicitCylinder_Upright(t *testing.T) {
	cyl, err := NewImplicitCylinder(core.NewVec3(0, 0, 0), 4, 1, 0, nil)
	if err != nil {
		t.Fatalf("NewImplicitCylinder failed: %v", err)
	}

	// Along Y the cylinder is 4 tall, along Z it has radius 1
	var rec core.HitRecord
	if !cyl.Hit(core.NewRay(core.NewVec3(0, 10, 0), core.NewVec3(0, -1, 0)), defaultRange, &rec) {
		t.Fatal("Expected hit on cylinder cap")
	}
	if math.Abs(rec.T-8) > marchTolerance {
		t.Errorf("Expected cap at t=8, got %f", rec.T)
	}

	if !cyl.Hit(core.NewRay(core.NewVec3(0, 1.5, 10), core.NewVec3(0, 0, -1)), defaultRange, &rec) {
		t.Fatal("Expected hit on cylinder side")
	}
	if math.Abs(rec.T-9) > marchTolerance {
		t.Errorf("Expected side at t=9, got %f", rec.T)
	}
}

func TestImplicit_RaysLeavingTheSurface(t *testing.T) {
	sphere, err := NewImplicitSphere(core.NewVec3(0, 0, 0), 1.0, nil)
	if err != nil {
		t.Fatalf("NewImplicitSphere failed: %v", err)
	}
	surface := core.NewVec3(0, 0, 1)

	var rec core.HitRecord
	outward := core.NewRay(surface, core.NewVec3(0, 0, 1))
	if sphere.Hit(outward, defaultRange, &rec) {
		t.Errorf("Ray leaving a convex surface should not re-hit it, got t=%f", rec.T)
	}

	// A refracted ray crosses the solid and exits on the far side
	inward := core.NewRay(surface, core.NewVec3(0, 0, -1))
	if !sphere.Hit(inward, defaultRange, &rec) {
		t.Fatal("Expected exit hit for a ray entering the solid")
	}
	if math.Abs(rec.T-2) > marchTolerance {
		t.Errorf("Expected exit at t=2, got %f", rec.T)
	}
	if rec.FrontFace {
		t.Error("Exit hit should be a back face")
	}
	if rec.Normal.Dot(inward.Direction) > 0 {
		t.Errorf("Normal %v should face against the ray", rec.Normal)
	}
}

func TestImplicit_InWorldList(t *testing.T) {
	implicit, err := NewImplicitSphere(core.NewVec3(0, 0, -2), 0.5, nil)
	if err != nil {
		t.Fatalf("NewImplicitSphere failed: %v", err)
	}
	world := NewHittableList(NewSphere(core.NewVec3(0, 0, -6), 1, nil), implicit)

	var rec core.HitRecord
	if !world.Hit(core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, -1)), defaultRange, &rec) {
		t.Fatal("Expected hit")
	}
	if math.Abs(rec.T-1.5) > marchTolerance {
		t.Errorf("Expected implicit sphere at t=1.5 to be nearest, got %f", rec.T)
	}
}
