package renderer

import (
	"image"

	"github.com/df07/go-pathtracer/pkg/core"
)

// TileRenderer handles the actual rendering of individual tiles using an integrator
type TileRenderer struct {
	world      core.Hittable
	camera     *Camera
	integrator Integrator
}

// NewTileRenderer creates a new tile renderer with the given world, camera and integrator
func NewTileRenderer(world core.Hittable, camera *Camera, integratorInst Integrator) *TileRenderer {
	return &TileRenderer{
		world:      world,
		camera:     camera,
		integrator: integratorInst,
	}
}

// RenderTileBounds tops up every pixel within bounds to targetSamples samples
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, pixelStats [][]PixelStats, sampler core.Sampler, targetSamples int) RenderStats {
	stats := RenderStats{
		TotalPixels: bounds.Dx() * bounds.Dy(),
		MaxSamples:  targetSamples,
		MinSamples:  targetSamples, // Start with max, will be reduced
	}

	for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
		for i := bounds.Min.X; i < bounds.Max.X; i++ {
			samplesUsed := tr.samplePixel(i, j, &pixelStats[j][i], sampler, targetSamples)
			stats.TotalSamples += samplesUsed
			stats.MinSamples = min(stats.MinSamples, samplesUsed)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, samplesUsed)
		}
	}

	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
	return stats
}

// samplePixel adds samples to ps until it holds targetSamples and returns how many were taken
func (tr *TileRenderer) samplePixel(i, j int, ps *PixelStats, sampler core.Sampler, targetSamples int) int {
	initialSampleCount := ps.SampleCount
	for ps.SampleCount < targetSamples {
		ray := tr.camera.GetRay(i, j, sampler)
		ps.AddSample(tr.integrator.Li(ray, tr.world, sampler))
	}
	return ps.SampleCount - initialSampleCount
}
