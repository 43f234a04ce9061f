package renderer

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/integrator"
)

// SamplingConfig contains rendering configuration
type SamplingConfig struct {
	SamplesPerPixel int // Number of rays per pixel
	MaxDepth        int // Maximum ray bounce depth
}

// DefaultSamplingConfig returns sensible default values
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		SamplesPerPixel: 100,
		MaxDepth:        50,
	}
}

// MergeSamplingConfig returns base with every non-zero field of override applied
func MergeSamplingConfig(base, override SamplingConfig) SamplingConfig {
	result := base
	if override.SamplesPerPixel != 0 {
		result.SamplesPerPixel = override.SamplesPerPixel
	}
	if override.MaxDepth != 0 {
		result.MaxDepth = override.MaxDepth
	}
	return result
}

// Validate reports sampling parameters that cannot produce an image
func (c SamplingConfig) Validate() error {
	if c.SamplesPerPixel <= 0 {
		return fmt.Errorf("%w: samples per pixel must be positive, got %d", ErrInvalidConfig, c.SamplesPerPixel)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth must not be negative, got %d", ErrInvalidConfig, c.MaxDepth)
	}
	return nil
}

// Scene is what the renderers need from a scene description.
// Declared here so the scene package can depend on renderer configs without a cycle.
type Scene interface {
	GetWorld() core.Hittable
	GetCameraConfig() CameraConfig
	GetSamplingConfig() SamplingConfig
}

// Integrator computes the radiance arriving along a camera ray
type Integrator interface {
	Li(ray core.Ray, world core.Hittable, sampler core.Sampler) core.Vec3
}

// DefaultSeed seeds the sequential sampler and tile samplers when the caller does not pick one
const DefaultSeed int64 = 42

// Raytracer renders a scene into a pixel sink
type Raytracer struct {
	camera       *Camera
	config       SamplingConfig
	tileRenderer *TileRenderer
	sampler      core.Sampler
	logger       core.Logger
}

// NewRaytracer validates the scene configuration and builds the camera
func NewRaytracer(scene Scene, logger core.Logger) (*Raytracer, error) {
	config := scene.GetSamplingConfig()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	camera, err := NewCamera(scene.GetCameraConfig())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger{}
	}

	pt := integrator.NewPathTracingIntegrator(config.MaxDepth)
	return &Raytracer{
		camera:       camera,
		config:       config,
		tileRenderer: NewTileRenderer(scene.GetWorld(), camera, pt),
		sampler:      core.NewRandomSampler(rand.New(rand.NewSource(DefaultSeed))), // Deterministic by default
		logger:       logger,
	}, nil
}

// SetSampler replaces the random source of the sequential renderer
func (rt *Raytracer) SetSampler(sampler core.Sampler) {
	rt.sampler = sampler
}

// Camera returns the camera derived from the scene
func (rt *Raytracer) Camera() *Camera {
	return rt.camera
}

// Width returns the image width in pixels
func (rt *Raytracer) Width() int {
	return rt.camera.Width()
}

// Height returns the image height in pixels
func (rt *Raytracer) Height() int {
	return rt.camera.Height()
}

// Render traces every pixel sequentially and emits it to sink in raster order:
// rows top to bottom, columns left to right. Each pixel averages exactly
// SamplesPerPixel samples. The context is checked between rows.
func (rt *Raytracer) Render(ctx context.Context, sink PixelSink) error {
	width, height := rt.Width(), rt.Height()
	spp := rt.config.SamplesPerPixel
	rt.logger.Printf("Rendering %dx%d with %d samples per pixel, max depth %d\n", width, height, spp, rt.config.MaxDepth)
	start := time.Now()

	for j := 0; j < height; j++ {
		if err := ctx.Err(); err != nil {
			rt.logger.Printf("Rendering cancelled at row %d\n", j)
			return err
		}
		rt.logger.Printf("\rScanlines remaining: %d ", height-j)
		for i := 0; i < width; i++ {
			var ps PixelStats
			rt.tileRenderer.samplePixel(i, j, &ps, rt.sampler, spp)
			r, g, b := ToneMap(ps.GetColor())
			sink.SetPixel(i, j, r, g, b)
		}
	}

	rt.logger.Printf("\rDone in %v.                 \n", time.Since(start))
	return nil
}

// RenderImage renders sequentially into a new image
func (rt *Raytracer) RenderImage(ctx context.Context) (*image.RGBA, error) {
	sink := NewImageSink(rt.Width(), rt.Height())
	if err := rt.Render(ctx, sink); err != nil {
		return nil, err
	}
	return sink.Image, nil
}

// RenderParallel renders tiles on a worker pool and then emits every pixel to sink in raster order.
// Tile samplers are seeded seed+tileID, so the output only depends on seed and tileSize.
func (rt *Raytracer) RenderParallel(ctx context.Context, sink PixelSink, numWorkers, tileSize int, seed int64) (RenderStats, error) {
	width, height := rt.Width(), rt.Height()
	spp := rt.config.SamplesPerPixel

	tiles := NewTileGrid(width, height, tileSize, seed)
	pixelStats := newPixelStats(width, height)
	pool := NewWorkerPool(rt.tileRenderer, len(tiles), numWorkers)

	rt.logger.Printf("Rendering %dx%d in %d tiles on %d workers with %d samples per pixel\n",
		width, height, len(tiles), pool.GetNumWorkers(), spp)
	start := time.Now()

	pool.Start()
	defer pool.Stop()

	for _, tile := range tiles {
		pool.SubmitTask(TileTask{
			Context:       ctx,
			Tile:          tile,
			PassNumber:    1,
			TargetSamples: spp,
			TaskID:        tile.ID,
			PixelStats:    pixelStats,
		})
	}

	for range tiles {
		result, ok := pool.GetResult()
		if !ok {
			return RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			return RenderStats{}, result.Error
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := ToneMap(pixelStats[y][x].GetColor())
			sink.SetPixel(x, y, r, g, b)
		}
	}

	stats := collectStats(image.Rect(0, 0, width, height), pixelStats, spp)
	rt.logger.Printf("Done in %v (%d samples)\n", time.Since(start), stats.TotalSamples)
	return stats, nil
}
