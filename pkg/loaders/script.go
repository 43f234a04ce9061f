package loaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// ErrEmptyScene is returned when a script finishes without adding any primitive
var ErrEmptyScene = errors.New("script scene has no primitives")

// LoadScriptFile reads a scene script from disk. The scene is named after the file.
func LoadScriptFile(path string) (*scene.Scene, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene script: %w", err)
	}

	s, err := LoadScript(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// LoadScript evaluates a scene script in a fresh sandbox and returns the scene it builds.
//
// Scripts start from the default camera and sampling settings; camera, lens, image and
// sampling forms override them. Shape forms add primitives to the world.
func LoadScript(source string) (*scene.Scene, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptyScene
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := &scriptBuilder{scene: scene.NewScene("script")}
	b.register(env)

	if err := env.LoadString(translateComments(source)); err != nil {
		return nil, fmt.Errorf("failed to parse scene script: %w", err)
	}
	if _, err := env.Run(); err != nil {
		return nil, fmt.Errorf("failed to evaluate scene script: %w", err)
	}

	if b.scene.GetPrimitiveCount() == 0 {
		return nil, ErrEmptyScene
	}
	if err := b.scene.CameraConfig.Validate(); err != nil {
		return nil, err
	}
	if err := b.scene.SamplingConfig.Validate(); err != nil {
		return nil, err
	}
	return b.scene, nil
}

// translateComments rewrites ";" line comments as "//", which is what the interpreter reads.
// Semicolons inside string literals are left alone.
func translateComments(source string) string {
	var out strings.Builder
	out.Grow(len(source))

	inString := false
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case inString:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(source) {
				i++
				out.WriteByte(source[i])
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == ';':
			out.WriteString("//")
			for i+1 < len(source) && source[i+1] == ';' {
				i++
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// Values passed between builtins

type sexpVec3 struct {
	vec core.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpMaterial struct {
	mat  core.Material
	kind string
}

func (m *sexpMaterial) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s)", m.kind)
}
func (m *sexpMaterial) Type() *zygo.RegisteredType { return nil }

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (core.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return core.Vec3{}, fmt.Errorf("expected vec3, got %s", s.SexpString(nil))
}

func toMaterial(s zygo.Sexp) (core.Material, error) {
	if m, ok := s.(*sexpMaterial); ok {
		return m.mat, nil
	}
	return nil, fmt.Errorf("expected material, got %s", s.SexpString(nil))
}

// floats converts every argument to a number
func floats(args []zygo.Sexp) ([]float64, error) {
	values := make([]float64, len(args))
	for i, arg := range args {
		f, err := toFloat64(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = f
	}
	return values, nil
}

// scriptBuilder accumulates the scene while the script runs
type scriptBuilder struct {
	scene *scene.Scene
}

type builtinFunc func(args []zygo.Sexp) (zygo.Sexp, error)

// arity wraps fn so it is only called with between lo and hi arguments,
// and prefixes any error with the builtin name
func arity(name string, lo, hi int, fn builtinFunc) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < lo || len(args) > hi {
			if lo == hi {
				return zygo.SexpNull, fmt.Errorf("%s requires %d arguments, got %d", name, lo, len(args))
			}
			return zygo.SexpNull, fmt.Errorf("%s requires %d to %d arguments, got %d", name, lo, hi, len(args))
		}
		result, err := fn(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		return result, nil
	}
}

func (b *scriptBuilder) register(env *zygo.Zlisp) {
	// (vec3 x y z)
	env.AddFunction("vec3", arity("vec3", 3, 3, func(args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := floats(args)
		if err != nil {
			return nil, err
		}
		return &sexpVec3{vec: core.NewVec3(v[0], v[1], v[2])}, nil
	}))

	// (lambertian albedo)
	env.AddFunction("lambertian", arity("lambertian", 1, 1, func(args []zygo.Sexp) (zygo.Sexp, error) {
		albedo, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		return &sexpMaterial{mat: material.NewLambertian(albedo), kind: "lambertian"}, nil
	}))

	// (metal albedo fuzz)
	env.AddFunction("metal", arity("metal", 2, 2, func(args []zygo.Sexp) (zygo.Sexp, error) {
		albedo, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		fuzz, err := toFloat64(args[1])
		if err != nil {
			return nil, err
		}
		return &sexpMaterial{mat: material.NewMetal(albedo, fuzz), kind: "metal"}, nil
	}))

	// (dielectric refractionIndex)
	env.AddFunction("dielectric", arity("dielectric", 1, 1, func(args []zygo.Sexp) (zygo.Sexp, error) {
		ri, err := toFloat64(args[0])
		if err != nil {
			return nil, err
		}
		if ri <= 0 {
			return nil, fmt.Errorf("refraction index must be positive, got %g", ri)
		}
		return &sexpMaterial{mat: material.NewDielectric(ri), kind: "dielectric"}, nil
	}))

	// (sphere center radius material)
	env.AddFunction("sphere", arity("sphere", 3, 3, func(args []zygo.Sexp) (zygo.Sexp, error) {
		center, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		radius, err := toFloat64(args[1])
		if err != nil {
			return nil, err
		}
		mat, err := toMaterial(args[2])
		if err != nil {
			return nil, err
		}
		b.scene.Add(geometry.NewSphere(center, radius, mat))
		return zygo.SexpNull, nil
	}))

	// (box center size material [round])
	env.AddFunction("box", arity("box", 3, 4, func(args []zygo.Sexp) (zygo.Sexp, error) {
		center, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		size, err := toVec3(args[1])
		if err != nil {
			return nil, err
		}
		mat, err := toMaterial(args[2])
		if err != nil {
			return nil, err
		}
		round := 0.0
		if len(args) == 4 {
			if round, err = toFloat64(args[3]); err != nil {
				return nil, err
			}
		}
		box, err := geometry.NewImplicitBox(center, size, round, mat)
		if err != nil {
			return nil, err
		}
		b.scene.Add(box)
		return zygo.SexpNull, nil
	}))

	// (cylinder center height radius material)
	env.AddFunction("cylinder", arity("cylinder", 4, 4, func(args []zygo.Sexp) (zygo.Sexp, error) {
		center, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		dims, err := floats(args[1:3])
		if err != nil {
			return nil, err
		}
		mat, err := toMaterial(args[3])
		if err != nil {
			return nil, err
		}
		cylinder, err := geometry.NewImplicitCylinder(center, dims[0], dims[1], 0, mat)
		if err != nil {
			return nil, err
		}
		b.scene.Add(cylinder)
		return zygo.SexpNull, nil
	}))

	// (camera lookFrom lookAt vfov [up])
	env.AddFunction("camera", arity("camera", 3, 4, func(args []zygo.Sexp) (zygo.Sexp, error) {
		cam := &b.scene.CameraConfig
		lookFrom, err := toVec3(args[0])
		if err != nil {
			return nil, err
		}
		lookAt, err := toVec3(args[1])
		if err != nil {
			return nil, err
		}
		vfov, err := toFloat64(args[2])
		if err != nil {
			return nil, err
		}
		if len(args) == 4 {
			if cam.Up, err = toVec3(args[3]); err != nil {
				return nil, err
			}
		}
		// The origin is a valid position, so assign rather than merge
		cam.LookFrom, cam.LookAt, cam.VFov = lookFrom, lookAt, vfov
		return zygo.SexpNull, nil
	}))

	// (lens defocusAngle focusDistance)
	env.AddFunction("lens", arity("lens", 2, 2, func(args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := floats(args)
		if err != nil {
			return nil, err
		}
		b.scene.CameraConfig.DefocusAngle = v[0]
		b.scene.CameraConfig.FocusDistance = v[1]
		return zygo.SexpNull, nil
	}))

	// (image width aspectRatio)
	env.AddFunction("image", arity("image", 2, 2, func(args []zygo.Sexp) (zygo.Sexp, error) {
		width, err := toInt(args[0])
		if err != nil {
			return nil, err
		}
		aspect, err := toFloat64(args[1])
		if err != nil {
			return nil, err
		}
		b.scene.CameraConfig.Width = width
		b.scene.CameraConfig.AspectRatio = aspect
		return zygo.SexpNull, nil
	}))

	// (sampling samplesPerPixel maxDepth)
	env.AddFunction("sampling", arity("sampling", 2, 2, func(args []zygo.Sexp) (zygo.Sexp, error) {
		spp, err := toInt(args[0])
		if err != nil {
			return nil, err
		}
		depth, err := toInt(args[1])
		if err != nil {
			return nil, err
		}
		b.scene.SamplingConfig = renderer.SamplingConfig{SamplesPerPixel: spp, MaxDepth: depth}
		return zygo.SexpNull, nil
	}))
}
