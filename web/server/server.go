package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/df07/go-pathtracer/pkg/loaders"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// RenderServiceName is the service name reported by the gRPC health service
const RenderServiceName = "pathtracer.Render"

// Request limits shared by the render, inspect and scene-config endpoints
const (
	minWidth      = 16
	maxWidth      = 2000
	maxSamplesCap = 10000
	maxPassesCap  = 100
	maxDepthCap   = 200
)

// Server handles web requests for the path tracer
type Server struct {
	port           int
	health         *health.Server
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new web server. Render sockets accept same-origin
// requests plus any of allowedOrigins (e.g. "http://localhost:3000").
func NewServer(port int, allowedOrigins ...string) *Server {
	s := &Server{
		port:           port,
		health:         health.NewServer(),
		allowedOrigins: allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// checkOrigin allows requests without an Origin header, same-host origins
// and configured origins
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.allowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene      string `json:"scene"`      // Scene ID (e.g., "default" or "script:glass")
	Width      int    `json:"width"`      // Image width, 0 keeps the scene's width
	MaxSamples int    `json:"maxSamples"` // Maximum samples per pixel, 0 keeps the scene's value
	MaxPasses  int    `json:"maxPasses"`  // Maximum number of passes
	MaxDepth   int    `json:"maxDepth"`   // Maximum bounce depth, 0 keeps the scene's value
	Seed       int64  `json:"seed"`       // Base seed for the tile samplers
}

// Handler returns the HTTP handler for every route.
// JSON endpoints are gzip-compressed; the WebSocket route is served unwrapped.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.Handle("/", http.FileServer(http.Dir("static/")))
	api.HandleFunc("/api/health", s.handleHealth)
	api.HandleFunc("/api/scenes", s.handleScenes)
	api.HandleFunc("/api/scene-config", s.handleSceneConfig)
	api.HandleFunc("/api/inspect", s.handleInspect)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/render/ws", s.handleRenderWS)
	mux.Handle("/", gzhttp.GzipHandler(api))
	return mux
}

// markServing reports the server and the render service as healthy
func (s *Server) markServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(RenderServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Start serves HTTP on the configured port
func (s *Server) Start() error {
	s.markServing()

	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// NewGRPCServer creates a gRPC server exposing the standard health service
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	grpcServer := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	return grpcServer
}

// ServeGRPC serves the health service on lis until the listener fails
func (s *Server) ServeGRPC(lis net.Listener) error {
	s.markServing()

	log.Printf("Serving gRPC health on %s", lis.Addr())
	return s.NewGRPCServer().Serve(lis)
}

// Shutdown marks every service as not serving
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists built-in and script scenes grouped for the UI
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSceneConfig returns the default configuration for a scene
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneID := r.URL.Query().Get("scene")
	if sceneID == "" {
		sceneID = "default"
	}

	sceneObj, err := loaders.LoadListedScene(sceneID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	camera := sceneObj.GetCameraConfig()
	sampling := sceneObj.GetSamplingConfig()
	response := map[string]interface{}{
		"scene": sceneID,
		"defaults": map[string]interface{}{
			"width":           camera.Width,
			"height":          camera.Height(),
			"aspectRatio":     camera.AspectRatio,
			"samplesPerPixel": sampling.SamplesPerPixel,
			"maxDepth":        sampling.MaxDepth,
			"maxPasses":       renderer.DefaultProgressiveConfig().MaxPasses,
			"primitiveCount":  sceneObj.GetPrimitiveCount(),
		},
		"limits": map[string]interface{}{
			"width":      map[string]int{"min": minWidth, "max": maxWidth},
			"maxSamples": map[string]int{"min": 1, "max": maxSamplesCap},
			"maxPasses":  map[string]int{"min": 1, "max": maxPassesCap},
			"maxDepth":   map[string]int{"min": 1, "max": maxDepthCap},
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// parseCommonSceneParams parses the scene and width shared by every scene endpoint
func (s *Server) parseCommonSceneParams(r *http.Request, req *RenderRequest) error {
	req.Scene = r.URL.Query().Get("scene")
	if req.Scene == "" {
		req.Scene = "default"
	}

	var err error
	req.Width, err = parseIntParam(r.URL.Query(), "width", 0, minWidth, maxWidth)
	return err
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	req := &RenderRequest{}
	if err := s.parseCommonSceneParams(r, req); err != nil {
		return nil, err
	}

	query := r.URL.Query()
	var err error
	if req.MaxSamples, err = parseIntParam(query, "maxSamples", 0, 1, maxSamplesCap); err != nil {
		return nil, err
	}
	if req.MaxPasses, err = parseIntParam(query, "maxPasses", renderer.DefaultProgressiveConfig().MaxPasses, 1, maxPassesCap); err != nil {
		return nil, err
	}
	if req.MaxDepth, err = parseIntParam(query, "maxDepth", 0, 1, maxDepthCap); err != nil {
		return nil, err
	}
	seed, err := parseIntParam(query, "seed", int(renderer.DefaultSeed), 0, 1<<31-1)
	if err != nil {
		return nil, err
	}
	req.Seed = int64(seed)

	return req, nil
}

// createScene loads the requested scene and applies the request overrides
func (s *Server) createScene(req *RenderRequest) (*scene.Scene, error) {
	sceneObj, err := loaders.LoadListedScene(req.Scene, renderer.CameraConfig{Width: req.Width})
	if err != nil {
		return nil, err
	}
	sceneObj.SamplingConfig = renderer.MergeSamplingConfig(sceneObj.SamplingConfig, renderer.SamplingConfig{
		SamplesPerPixel: req.MaxSamples,
		MaxDepth:        req.MaxDepth,
	})
	return sceneObj, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
