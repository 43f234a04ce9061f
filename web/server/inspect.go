package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool                   `json:"hit"`
	MaterialType string                 `json:"materialType"`
	GeometryType string                 `json:"geometryType"`
	Point        [3]float64             `json:"point"`
	Normal       [3]float64             `json:"normal"`
	Distance     float64                `json:"distance"`
	FrontFace    bool                   `json:"frontFace"`
	Properties   map[string]interface{} `json:"properties"`
}

func vecArray(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func hexColor(v core.Vec3) string {
	unit := core.NewInterval(0, 1)
	return fmt.Sprintf("#%02x%02x%02x",
		int(unit.Clamp(v.X)*255), int(unit.Clamp(v.Y)*255), int(unit.Clamp(v.Z)*255))
}

// extractMaterialInfo extracts detailed material information with type assertions
func extractMaterialInfo(mat core.Material) (string, map[string]interface{}) {
	properties := make(map[string]interface{})

	switch m := mat.(type) {
	case *material.Lambertian:
		properties["albedo"] = vecArray(m.Albedo)
		properties["color"] = hexColor(m.Albedo)
		return "lambertian", properties

	case *material.Metal:
		properties["albedo"] = vecArray(m.Albedo)
		properties["color"] = hexColor(m.Albedo)
		properties["fuzz"] = m.Fuzz
		return "metal", properties

	case *material.Dielectric:
		properties["refractionIndex"] = m.RefractionIndex
		properties["color"] = "#ffffff" // Clear glass
		return "dielectric", properties

	case nil:
		return "none", properties

	default:
		return "unknown", properties
	}
}

// extractGeometryInfo extracts detailed geometry information
func extractGeometryInfo(object core.Hittable) (string, map[string]interface{}) {
	properties := make(map[string]interface{})

	switch geom := object.(type) {
	case *geometry.Sphere:
		properties["center"] = vecArray(geom.Center)
		properties["radius"] = geom.Radius
		return "sphere", properties

	case *geometry.Implicit:
		bbox := geom.SDF.BoundingBox()
		properties["boundingBox"] = map[string]interface{}{
			"min": [3]float64{bbox.Min.X, bbox.Min.Y, bbox.Min.Z},
			"max": [3]float64{bbox.Max.X, bbox.Max.Y, bbox.Max.Z},
		}
		return "implicit", properties

	default:
		return "unknown", properties
	}
}

// InspectResult describes what the centre ray of a pixel hit
type InspectResult struct {
	Hit       bool
	HitRecord core.HitRecord
	Object    core.Hittable // Nil when the hit could not be attributed to one object
}

// inspectPixel casts the centre ray of pixel (x, y) and returns the nearest hit
func inspectPixel(sceneObj *scene.Scene, pixelX, pixelY int) (InspectResult, error) {
	camera, err := renderer.NewCamera(sceneObj.GetCameraConfig())
	if err != nil {
		return InspectResult{}, err
	}
	ray := camera.GetCenterRay(pixelX, pixelY)

	var rec core.HitRecord
	if !sceneObj.World.Hit(ray, integrator.HitInterval, &rec) {
		return InspectResult{Hit: false}, nil
	}

	return InspectResult{
		Hit:       true,
		HitRecord: rec,
		Object:    findHitObject(sceneObj.World, ray, rec.T),
	}, nil
}

// findHitObject returns the leaf object whose nearest hit along ray is at t
func findHitObject(list *geometry.HittableList, ray core.Ray, t float64) core.Hittable {
	for _, object := range list.Objects {
		var rec core.HitRecord
		if !object.Hit(ray, core.NewInterval(integrator.HitInterval.Min, t+1e-9), &rec) || rec.T != t {
			continue
		}
		if nested, ok := object.(*geometry.HittableList); ok {
			return findHitObject(nested, ray, t)
		}
		return object
	}
	return nil
}

// handleInspect handles ray casting inspection requests
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	inspectReq := &RenderRequest{}
	if err := s.parseCommonSceneParams(r, inspectReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scene parameters: "+err.Error())
		return
	}

	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid x coordinate")
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid y coordinate")
		return
	}

	sceneObj, err := s.createScene(inspectReq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cameraConfig := sceneObj.GetCameraConfig()
	if pixelX < 0 || pixelX >= cameraConfig.Width || pixelY < 0 || pixelY >= cameraConfig.Height() {
		writeError(w, http.StatusBadRequest, "Pixel coordinates out of bounds")
		return
	}

	result, err := inspectPixel(sceneObj, pixelX, pixelY)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !result.Hit {
		writeJSON(w, http.StatusOK, InspectResponse{Hit: false})
		return
	}

	materialType, materialProps := extractMaterialInfo(result.HitRecord.Material)
	geometryType, geometryProps := extractGeometryInfo(result.Object)

	writeJSON(w, http.StatusOK, InspectResponse{
		Hit:          true,
		MaterialType: materialType,
		GeometryType: geometryType,
		Point:        vecArray(result.HitRecord.Point),
		Normal:       vecArray(result.HitRecord.Normal),
		Distance:     result.HitRecord.T,
		FrontFace:    result.HitRecord.FrontFace,
		Properties: map[string]interface{}{
			"material": materialProps,
			"geometry": geometryProps,
		},
	})
}
