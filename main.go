package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/imageio"
	"github.com/df07/go-pathtracer/pkg/loaders"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// Config holds the parsed command line options
type Config struct {
	Scene   string
	Script  string
	Width   int
	Samples int
	Depth   int
	Seed    int64
	Workers int
	Passes  int
	Output  string
	List    bool
	Help    bool
}

func parseFlags(args []string, errOut io.Writer) (Config, *flag.FlagSet, error) {
	var cfg Config
	fs := flag.NewFlagSet("pathtracer", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&cfg.Scene, "scene", "default", "Built-in scene name or scene ID (see -list)")
	fs.StringVar(&cfg.Script, "script", "", "Path to a .zy scene script (overrides -scene)")
	fs.IntVar(&cfg.Width, "width", 0, "Image width in pixels (0 = scene default)")
	fs.IntVar(&cfg.Samples, "samples", 0, "Samples per pixel (0 = scene default)")
	fs.IntVar(&cfg.Depth, "depth", 0, "Maximum bounce depth (0 = scene default)")
	fs.Int64Var(&cfg.Seed, "seed", renderer.DefaultSeed, "Random seed")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Worker goroutines (1 = single-threaded raster order)")
	fs.IntVar(&cfg.Passes, "passes", 0, "Render progressively in this many passes (0 = single pass)")
	fs.StringVar(&cfg.Output, "output", "", "Output file (.png, .bmp, .ppm, .ppm.zst, .ppm.sz)")
	fs.BoolVar(&cfg.List, "list", false, "List available scenes and exit")
	fs.BoolVar(&cfg.Help, "help", false, "Show help information")

	err := fs.Parse(args)
	return cfg, fs, err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	cfg, fs, err := parseFlags(args, errOut)
	if err != nil {
		return err
	}

	if cfg.Help {
		printHelp(out, fs)
		return nil
	}
	if cfg.List {
		return listScenes(out)
	}

	sceneID := cfg.Scene
	if cfg.Script != "" {
		sceneID = cfg.Script
	}

	selectedScene, err := createScene(sceneID, cfg)
	if err != nil {
		return err
	}

	outputPath := cfg.Output
	if outputPath == "" {
		outputPath = defaultOutputPath(selectedScene.Name, time.Now())
	}
	// Fail on a bad extension before spending time rendering
	if _, err := imageio.FormatFromPath(outputPath); err != nil {
		return err
	}

	logger := renderer.NewDefaultLogger()
	fmt.Fprintf(out, "Rendering scene %q (%d primitives)...\n", selectedScene.Name, selectedScene.GetPrimitiveCount())

	startTime := time.Now()
	img, err := renderScene(ctx, selectedScene, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Render completed in %v\n", time.Since(startTime))

	if err := imageio.Save(outputPath, img); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	fmt.Fprintf(out, "Render saved as %s\n", outputPath)
	return nil
}

// createScene loads the scene and applies the command line overrides
func createScene(sceneID string, cfg Config) (*scene.Scene, error) {
	if sceneID == "" {
		return nil, fmt.Errorf("no scene given")
	}

	s, err := loaders.LoadScene(sceneID, renderer.CameraConfig{Width: cfg.Width})
	if err != nil {
		return nil, err
	}

	s.SamplingConfig = renderer.MergeSamplingConfig(s.SamplingConfig, renderer.SamplingConfig{
		SamplesPerPixel: cfg.Samples,
		MaxDepth:        cfg.Depth,
	})
	return s, nil
}

// renderScene picks the renderer: progressive passes, tiled workers, or the single-threaded raster loop
func renderScene(ctx context.Context, s *scene.Scene, cfg Config, logger core.Logger) (image.Image, error) {
	if cfg.Passes > 0 {
		return renderProgressive(ctx, s, cfg, logger)
	}

	rt, err := renderer.NewRaytracer(s, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Workers <= 1 {
		rt.SetSampler(core.NewRandomSampler(rand.New(rand.NewSource(cfg.Seed))))
		return rt.RenderImage(ctx)
	}

	sink := renderer.NewImageSink(rt.Width(), rt.Height())
	stats, err := rt.RenderParallel(ctx, sink, cfg.Workers, renderer.DefaultTileSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	logger.Printf("Samples per pixel: %.1f (range %d - %d)\n", stats.AverageSamples, stats.MinSamples, stats.MaxSamplesUsed)
	return sink.Image, nil
}

func renderProgressive(ctx context.Context, s *scene.Scene, cfg Config, logger core.Logger) (image.Image, error) {
	config := renderer.ProgressiveConfigFor(s.SamplingConfig, cfg.Passes, cfg.Workers, cfg.Seed)

	pr, err := renderer.NewProgressiveRaytracer(s, config, logger)
	if err != nil {
		return nil, err
	}

	passChan, _, errChan := pr.RenderProgressive(ctx, renderer.RenderOptions{})

	var last *image.RGBA
	for pass := range passChan {
		last = pass.Image
	}
	if err := <-errChan; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if last == nil {
		return nil, fmt.Errorf("progressive render produced no passes")
	}
	return last, nil
}

// defaultOutputPath returns output/<scene>/render_<timestamp>.png
func defaultOutputPath(sceneName string, now time.Time) string {
	dir := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(sceneName)
	if dir == "" {
		dir = "scene"
	}
	return filepath.Join("output", dir, fmt.Sprintf("render_%s.png", now.Format("20060102_150405")))
}

func listScenes(out io.Writer) error {
	response, err := scene.ListAllScenes()
	if err != nil {
		return err
	}
	for _, group := range response.Groups {
		fmt.Fprintf(out, "%s:\n", group.Name)
		for _, s := range group.Scenes {
			if s.Description != "" {
				fmt.Fprintf(out, "  %-24s %s\n", s.ID, s.Description)
			} else {
				fmt.Fprintf(out, "  %s\n", s.ID)
			}
		}
	}
	return nil
}

func printHelp(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Path Tracer")
	fmt.Fprintln(out, "Usage: pathtracer [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Available scenes:")
	for _, s := range scene.BuiltinScenes() {
		fmt.Fprintf(out, "  %-12s - %s\n", s.ID, s.Description)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Output will be saved to output/<scene>/render_<timestamp>.png unless -output is given")
}
