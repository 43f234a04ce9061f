package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// PixelSink receives final pixel colors
type PixelSink interface {
	SetPixel(x, y int, r, g, b uint8)
}

// SinkFunc adapts a function to PixelSink
type SinkFunc func(x, y int, r, g, b uint8)

// SetPixel calls f(x, y, r, g, b)
func (f SinkFunc) SetPixel(x, y int, r, g, b uint8) {
	f(x, y, r, g, b)
}

// ImageSink writes pixels into an RGBA image
type ImageSink struct {
	Image *image.RGBA
}

// NewImageSink creates a sink backed by a new width x height image
func NewImageSink(width, height int) *ImageSink {
	return &ImageSink{Image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// SetPixel stores an opaque pixel
func (s *ImageSink) SetPixel(x, y int, r, g, b uint8) {
	s.Image.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
}

var intensity = core.NewInterval(0.000, 0.999)

// linearToGamma applies the gamma 2 transfer curve, mapping non-positive and NaN values to 0
func linearToGamma(linear float64) float64 {
	if linear > 0 {
		return math.Sqrt(linear)
	}
	return 0
}

// ToneMap converts a linear color to display bytes
func ToneMap(c core.Vec3) (r, g, b uint8) {
	r = uint8(256 * intensity.Clamp(linearToGamma(c.X)))
	g = uint8(256 * intensity.Clamp(linearToGamma(c.Y)))
	b = uint8(256 * intensity.Clamp(linearToGamma(c.Z)))
	return r, g, b
}

// ColorToRGBA tone maps a linear color into an opaque RGBA value
func ColorToRGBA(c core.Vec3) color.RGBA {
	r, g, b := ToneMap(c)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
