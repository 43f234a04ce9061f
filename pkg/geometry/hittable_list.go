package geometry

import (
	"github.com/df07/go-pathtracer/pkg/core"
)

// HittableList is a linear aggregate of hittables.
// It is built before rendering and only read while rendering.
type HittableList struct {
	Objects []core.Hittable
}

// NewHittableList creates a list holding the given objects
func NewHittableList(objects ...core.Hittable) *HittableList {
	return &HittableList{Objects: objects}
}

// Add appends an object to the list
func (l *HittableList) Add(object core.Hittable) {
	l.Objects = append(l.Objects, object)
}

// Clear removes every object
func (l *HittableList) Clear() {
	l.Objects = nil
}

// Len returns the number of objects in the list
func (l *HittableList) Len() int {
	return len(l.Objects)
}

// Hit returns the nearest hit across all objects.
// The search interval shrinks to each hit found, so later objects can only win when strictly closer.
func (l *HittableList) Hit(ray core.Ray, rayT core.Interval, rec *core.HitRecord) bool {
	var tempRec core.HitRecord
	hitAnything := false
	closestSoFar := rayT.Max

	for _, object := range l.Objects {
		if object.Hit(ray, core.NewInterval(rayT.Min, closestSoFar), &tempRec) {
			hitAnything = true
			closestSoFar = tempRec.T
			*rec = tempRec
		}
	}

	return hitAnything
}
