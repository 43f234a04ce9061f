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

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int   // Size of each tile (64x64 recommended)
	InitialSamples     int   // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int   // Maximum total samples per pixel
	MaxPasses          int   // Maximum number of passes
	NumWorkers         int   // Number of parallel workers (0 = use CPU count)
	Seed               int64 // Base seed for the per-tile samplers
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           64,
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7, // 1, then evenly spaced up to 50
		NumWorkers:         0, // Auto-detect CPU count
		Seed:               DefaultSeed,
	}
}

// ProgressiveConfigFor builds a config that renders sampling.SamplesPerPixel samples
// in at most passes passes. Passes are capped at the sample count so every pass
// adds samples.
func ProgressiveConfigFor(sampling SamplingConfig, passes, workers int, seed int64) ProgressiveConfig {
	config := DefaultProgressiveConfig()
	config.MaxSamplesPerPixel = sampling.SamplesPerPixel
	config.MaxPasses = min(passes, sampling.SamplesPerPixel)
	config.NumWorkers = workers
	config.Seed = seed
	return config
}

// Validate reports settings that would never finish a pass
func (c ProgressiveConfig) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("%w: tile size must be positive, got %d", ErrInvalidConfig, c.TileSize)
	}
	if c.MaxPasses <= 0 {
		return fmt.Errorf("%w: max passes must be positive, got %d", ErrInvalidConfig, c.MaxPasses)
	}
	if c.MaxSamplesPerPixel <= 0 {
		return fmt.Errorf("%w: max samples per pixel must be positive, got %d", ErrInvalidConfig, c.MaxSamplesPerPixel)
	}
	if c.InitialSamples <= 0 || c.InitialSamples > c.MaxSamplesPerPixel {
		return fmt.Errorf("%w: initial samples must be in [1, %d], got %d", ErrInvalidConfig, c.MaxSamplesPerPixel, c.InitialSamples)
	}
	return nil
}

// ProgressiveRaytracer manages progressive rendering with multiple passes
type ProgressiveRaytracer struct {
	camera        *Camera
	width, height int
	config        ProgressiveConfig
	tiles         []*Tile        // Tile management
	currentPass   int            // Progressive state
	pixelStats    [][]PixelStats // Shared pixel statistics array (global image coordinates)
	workerPool    *WorkerPool    // Worker pool for parallel processing
	started       bool
	logger        core.Logger // Logger for rendering output
}

// NewProgressiveRaytracer creates a new progressive raytracer.
// The scene's sample count is ignored; passes run up to config.MaxSamplesPerPixel.
func NewProgressiveRaytracer(scene Scene, config ProgressiveConfig, logger core.Logger) (*ProgressiveRaytracer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sampling := scene.GetSamplingConfig()
	if sampling.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth must not be negative, got %d", ErrInvalidConfig, sampling.MaxDepth)
	}
	camera, err := NewCamera(scene.GetCameraConfig())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger{}
	}

	width, height := camera.Width(), camera.Height()
	tiles := NewTileGrid(width, height, config.TileSize, config.Seed)
	tileRenderer := NewTileRenderer(scene.GetWorld(), camera, integrator.NewPathTracingIntegrator(sampling.MaxDepth))

	return &ProgressiveRaytracer{
		camera:      camera,
		width:       width,
		height:      height,
		config:      config,
		tiles:       tiles,
		currentPass: 0,
		pixelStats:  newPixelStats(width, height),
		workerPool:  NewWorkerPool(tileRenderer, len(tiles), config.NumWorkers),
		logger:      logger,
	}, nil
}

// Width returns the image width in pixels
func (pr *ProgressiveRaytracer) Width() int {
	return pr.width
}

// Height returns the image height in pixels
func (pr *ProgressiveRaytracer) Height() int {
	return pr.height
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	// The final pass always reaches the maximum
	if passNumber >= pr.config.MaxPasses {
		return pr.config.MaxSamplesPerPixel
	}
	return pr.config.InitialSamples + (passNumber-1)*samplesPerPass
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *ProgressiveRaytracer) RenderPass(ctx context.Context, passNumber int, tileCallback func(TileCompletionResult)) (*image.RGBA, RenderStats, error) {
	pr.currentPass = passNumber
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	if !pr.started {
		pr.workerPool.Start()
		pr.started = true
	}

	for taskID, tile := range pr.tiles {
		pr.workerPool.SubmitTask(TileTask{
			Context:       ctx,
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
			PixelStats:    pr.pixelStats,
		})
	}

	// Collect every result before returning so no worker still writes the pixel stats
	var firstErr error
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return nil, RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		if firstErr != nil {
			continue
		}

		tile := pr.tiles[result.TaskID]
		tile.PassesCompleted++

		// Callbacks run on this goroutine, one at a time
		if tileCallback != nil {
			tileCallback(TileCompletionResult{
				TileX:       tile.Bounds.Min.X / pr.config.TileSize,
				TileY:       tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:   pr.extractTileImage(tile),
				PassNumber:  passNumber,
				TileNumber:  i + 1,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
	}
	if firstErr != nil {
		return nil, RenderStats{}, firstErr
	}

	img, stats := pr.assembleCurrentImage(targetSamples)
	return img, stats, nil
}

// extractTileImage extracts a tile image from the shared pixel stats array
func (pr *ProgressiveRaytracer) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			stats := &pr.pixelStats[y][x]
			if stats.SampleCount > 0 {
				tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, ColorToRGBA(stats.GetColor()))
			}
		}
	}

	return tileImage
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Current tile number in this pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	TileUpdates bool // Whether to generate tile completion events
}

// RenderProgressive renders all passes on a goroutine and reports through channels.
// If options.TileUpdates is false, the tile channel is closed immediately.
// A ProgressiveRaytracer renders progressively only once; its workers stop when the passes end.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context, options RenderOptions) (<-chan PassResult, <-chan TileCompletionResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	tileChan := make(chan TileCompletionResult, 100)
	errChan := make(chan error, 1)

	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(passChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)
		defer pr.workerPool.Stop()

		pr.logger.Printf("Starting progressive rendering with %d passes...\n", pr.config.MaxPasses)

		for pass := 1; pass <= pr.config.MaxPasses; pass++ {
			if err := ctx.Err(); err != nil {
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- err
				return
			}

			startTime := time.Now()

			var tileCallback func(TileCompletionResult)
			if options.TileUpdates {
				tileCallback = func(result TileCompletionResult) {
					select {
					case tileChan <- result:
					case <-ctx.Done():
					default:
						// Slow consumer: drop the tile, the pass image carries it anyway
					}
				}
			}

			img, stats, err := pr.RenderPass(ctx, pass, tileCallback)
			if err != nil {
				errChan <- err
				return
			}

			actualSamples := int(stats.AverageSamples)
			pr.logger.Printf("Pass %d completed in %v (actual: %d samples/pixel)\n",
				pass, time.Since(startTime), actualSamples)

			isLast := pass == pr.config.MaxPasses || actualSamples >= pr.config.MaxSamplesPerPixel
			select {
			case passChan <- PassResult{PassNumber: pass, Image: img, Stats: stats, IsLast: isLast}:
			case <-ctx.Done():
				return
			}

			if isLast {
				if actualSamples >= pr.config.MaxSamplesPerPixel {
					pr.logger.Printf("Reached maximum samples per pixel (%d), stopping.\n", pr.config.MaxSamplesPerPixel)
				}
				return
			}
		}
	}()

	return passChan, tileChan, errChan
}

// assembleCurrentImage creates an image from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*image.RGBA, RenderStats) {
	img := image.NewRGBA(image.Rect(0, 0, pr.width, pr.height))
	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			img.SetRGBA(x, y, ColorToRGBA(pr.pixelStats[y][x].GetColor()))
		}
	}
	return img, collectStats(img.Bounds(), pr.pixelStats, targetSamples)
}

// DefaultTileSize is used when a tile grid is requested with a non-positive size
const DefaultTileSize = 64

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
	Sampler         core.Sampler    // Tile-specific sampler for deterministic results
}

// NewTile creates a new tile whose sampler is seeded with seed+id
func NewTile(id int, bounds image.Rectangle, seed int64) *Tile {
	return &Tile{
		ID:      id,
		Bounds:  bounds,
		Sampler: core.NewRandomSampler(rand.New(rand.NewSource(seed + int64(id)))),
	}
}

// NewTileGrid creates a grid of tiles covering the entire image in raster order
func NewTileGrid(width, height, tileSize int, seed int64) []*Tile {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}

	var tiles []*Tile
	tileID := 0

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1), seed))
			tileID++
		}
	}

	return tiles
}
