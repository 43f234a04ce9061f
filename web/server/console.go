package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
)

// ConsoleMessage is one renderer log line forwarded to the browser console
type ConsoleMessage struct {
	RenderID  string    `json:"renderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// WebLogger implements core.Logger by sending messages to a console channel
type WebLogger struct {
	renderID    string
	consoleChan chan<- ConsoleMessage
}

// NewWebLogger creates a new web logger for a specific render
func NewWebLogger(renderID string, consoleChan chan<- ConsoleMessage) core.Logger {
	return &WebLogger{
		renderID:    renderID,
		consoleChan: consoleChan,
	}
}

// Printf implements core.Logger. Messages also go to the server log.
// Carriage returns used for terminal progress lines are dropped.
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := strings.TrimLeft(fmt.Sprintf(format, args...), "\r")
	if strings.TrimSpace(message) == "" {
		return
	}

	log.Printf("[%s] %s", wl.renderID, strings.TrimRight(message, "\n"))

	if wl.consoleChan == nil {
		return
	}

	// Never block the renderer on a slow client
	select {
	case wl.consoleChan <- ConsoleMessage{
		RenderID:  wl.renderID,
		Message:   message,
		Timestamp: time.Now(),
		Level:     "info",
	}:
	default:
	}
}
