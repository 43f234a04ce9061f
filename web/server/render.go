package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// StreamEvent is one JSON frame sent over the render WebSocket
type StreamEvent struct {
	Type string          `json:"type"` // "console", "tile", "passComplete", "error", "complete"
	Data json.RawMessage `json:"data"`
}

// TileUpdate represents a single tile update
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG of just this tile
	PassNumber  int    `json:"passNumber"`
	TileNumber  int    `json:"tileNumber"`  // Current tile number in this pass (1-based)
	TotalTiles  int    `json:"totalTiles"`  // Total number of tiles in the image
	TotalPasses int    `json:"totalPasses"` // Total number of passes planned
}

// PassUpdate is sent when every tile of a pass is done
type PassUpdate struct {
	PassNumber     int     `json:"passNumber"`
	TotalPasses    int     `json:"totalPasses"`
	ImageData      string  `json:"imageData"` // Base64 encoded PNG of the whole image
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	ElapsedMs      int64   `json:"elapsedMs"`
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
	PrimitiveCount int     `json:"primitiveCount"`
	IsLast         bool    `json:"isLast"`
}

// RenderingPipeline contains the configured scene and raytracer
type RenderingPipeline struct {
	Scene     *scene.Scene
	Raytracer *renderer.ProgressiveRaytracer
	Passes    int
}

// handleRenderWS streams a progressive render over a WebSocket.
// Request errors are reported as HTTP 400 before the upgrade.
func (s *Server) handleRenderWS(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan StreamEvent, 100)
	writerDone := make(chan struct{})
	go s.writeEvents(conn, events, cancel, writerDone)

	// Reader: the client never sends anything meaningful, so any read error
	// means it went away and the render should stop
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	consoleChan, webLogger := s.setupConsoleLogging()
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(ctx, consoleChan, events)
	}()

	s.runRender(ctx, req, webLogger, events)

	// Nothing else may send once events is closed
	cancel()
	<-consoleDone
	close(events)
	<-writerDone
}

// writeEvents is the only goroutine that writes to conn
func (s *Server) writeEvents(conn *websocket.Conn, events <-chan StreamEvent, cancel context.CancelFunc, done chan<- struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling %s event: %v", event.Type, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cancel()
				drain(events)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				drain(events)
				return
			}
		}
	}
}

// drain discards events until the channel is closed so senders never block
func drain(events <-chan StreamEvent) {
	for range events {
	}
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging() (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	return consoleChan, NewWebLogger(renderID, consoleChan)
}

// streamConsoleMessages forwards console messages until ctx is done.
// Messages are dropped rather than delaying the render.
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, events chan<- StreamEvent) {
	for {
		select {
		case msg := <-consoleChan:
			event, err := newEvent("console", msg)
			if err != nil {
				continue
			}
			select {
			case events <- event:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

// setupRenderingPipeline creates and configures the scene and raytracer
func (s *Server) setupRenderingPipeline(req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	sceneObj, err := s.createScene(req)
	if err != nil {
		return nil, err
	}

	config := renderer.ProgressiveConfigFor(sceneObj.SamplingConfig, req.MaxPasses, 0, req.Seed)

	raytracer, err := renderer.NewProgressiveRaytracer(sceneObj, config, logger)
	if err != nil {
		return nil, err
	}
	return &RenderingPipeline{Scene: sceneObj, Raytracer: raytracer, Passes: config.MaxPasses}, nil
}

// runRender renders every pass, sending tile, pass and final events.
// The caller owns events and closes it afterwards.
func (s *Server) runRender(ctx context.Context, req *RenderRequest, logger core.Logger, events chan<- StreamEvent) {
	pipeline, err := s.setupRenderingPipeline(req, logger)
	if err != nil {
		s.sendEvent(ctx, events, "error", map[string]string{"message": err.Error()})
		return
	}

	startTime := time.Now()
	passChan, tileChan, errChan := pipeline.Raytracer.RenderProgressive(ctx, renderer.RenderOptions{TileUpdates: true})

	for passChan != nil || tileChan != nil {
		select {
		case passResult, ok := <-passChan:
			if !ok {
				passChan = nil
				continue
			}
			s.handlePassComplete(ctx, events, passResult, pipeline, startTime)
		case tileResult, ok := <-tileChan:
			if !ok {
				tileChan = nil
				continue
			}
			s.handleTileUpdate(ctx, events, tileResult)
		case <-ctx.Done():
			return
		}
	}

	if err := <-errChan; err != nil {
		s.sendEvent(ctx, events, "error", map[string]string{"message": fmt.Sprintf("Rendering failed: %v", err)})
		return
	}
	s.sendEvent(ctx, events, "complete", map[string]string{"message": "Rendering completed"})
}

// handlePassComplete sends the whole image and statistics for a finished pass
func (s *Server) handlePassComplete(ctx context.Context, events chan<- StreamEvent, passResult renderer.PassResult, pipeline *RenderingPipeline, startTime time.Time) {
	imageData, err := imageToBase64PNG(passResult.Image)
	if err != nil {
		log.Printf("Error encoding pass %d image: %v", passResult.PassNumber, err)
		return
	}

	bounds := passResult.Image.Bounds()
	s.sendEvent(ctx, events, "passComplete", PassUpdate{
		PassNumber:     passResult.PassNumber,
		TotalPasses:    pipeline.Passes,
		ImageData:      imageData,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		TotalPixels:    passResult.Stats.TotalPixels,
		TotalSamples:   passResult.Stats.TotalSamples,
		AverageSamples: passResult.Stats.AverageSamples,
		MaxSamples:     passResult.Stats.MaxSamples,
		MinSamples:     passResult.Stats.MinSamples,
		MaxSamplesUsed: passResult.Stats.MaxSamplesUsed,
		PrimitiveCount: pipeline.Scene.GetPrimitiveCount(),
		IsLast:         passResult.IsLast,
	})
}

// handleTileUpdate processes and sends tile update events
func (s *Server) handleTileUpdate(ctx context.Context, events chan<- StreamEvent, tileResult renderer.TileCompletionResult) {
	tileData, err := imageToBase64PNG(tileResult.TileImage)
	if err != nil {
		log.Printf("Error encoding tile image (%d, %d): %v", tileResult.TileX, tileResult.TileY, err)
		return
	}

	s.sendEvent(ctx, events, "tile", TileUpdate{
		TileX:       tileResult.TileX,
		TileY:       tileResult.TileY,
		ImageData:   tileData,
		PassNumber:  tileResult.PassNumber,
		TileNumber:  tileResult.TileNumber,
		TotalTiles:  tileResult.TotalTiles,
		TotalPasses: tileResult.TotalPasses,
	})
}

// sendEvent queues an event unless the client is gone
func (s *Server) sendEvent(ctx context.Context, events chan<- StreamEvent, eventType string, payload interface{}) {
	event, err := newEvent(eventType, payload)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", eventType, err)
		return
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func newEvent(eventType string, payload interface{}) (StreamEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return StreamEvent{}, err
	}
	return StreamEvent{Type: eventType, Data: data}, nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
