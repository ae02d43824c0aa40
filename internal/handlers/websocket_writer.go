package handlers

import (
	"context"
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

// Capacity of the batch channel arbor pushes log events into
const defaultLogStreamBufferSize = 10

// LogStreamWriter consumes log batches from arbor's context channel and
// mirrors them into the logs room on the event bus. Entries below the
// configured level or matching an exclude pattern are dropped; a rate
// limiter protects slow subscribers from log bursts.
type LogStreamWriter struct {
	events          interfaces.EventService
	channel         chan []arbormodels.LogEvent
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	minLevel        levels.LogLevel
	excludePatterns []string
	throttle        *rate.Limiter
}

// NewLogStreamWriter creates the log stream consumer
func NewLogStreamWriter(events interfaces.EventService, wsConfig *common.WebSocketConfig) *LogStreamWriter {
	minLevel := levels.InfoLevel
	excludePatterns := []string{
		"WebSocket client connected",
		"WebSocket client disconnected",
		"HTTP request",
		"HTTP response",
	}
	var throttle *rate.Limiter

	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.LogMinLevel)
		if len(wsConfig.LogExcludePatterns) > 0 {
			excludePatterns = wsConfig.LogExcludePatterns
		}
		if interval := common.ParseDurationOr(wsConfig.LogThrottle, 0); interval > 0 {
			throttle = rate.NewLimiter(rate.Every(interval), 1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LogStreamWriter{
		events:          events,
		channel:         make(chan []arbormodels.LogEvent, defaultLogStreamBufferSize),
		ctx:             ctx,
		cancel:          cancel,
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
		throttle:        throttle,
	}
}

// Channel returns the batch channel to register with the logger via SetChannel
func (w *LogStreamWriter) Channel() chan []arbormodels.LogEvent {
	return w.channel
}

// Start launches the consumer goroutine
func (w *LogStreamWriter) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				return
			case batch := <-w.channel:
				for _, entry := range batch {
					w.process(entry)
				}
			}
		}
	}()
}

// Stop terminates the consumer and waits for in-flight batches
func (w *LogStreamWriter) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *LogStreamWriter) process(entry arbormodels.LogEvent) {
	arborLevel := plogToArborLevel(entry.Level)
	if arborLevel < w.minLevel {
		return
	}
	for _, pattern := range w.excludePatterns {
		if strings.Contains(entry.Message, pattern) {
			return
		}
	}
	if w.throttle != nil && !w.throttle.Allow() {
		return
	}

	w.events.Publish(LogsRoom, interfaces.EventLog, map[string]interface{}{
		"timestamp": entry.Timestamp.Format("15:04:05"),
		"level":     mapLevel(arborLevel),
		"message":   entry.Message,
	})
}

// plogToArborLevel converts phuslu/log.Level to arbor levels.LogLevel
func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// parseLogLevel converts string log level to arbor levels.LogLevel
func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// mapLevel maps arbor log levels to UI strings
func mapLevel(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.InfoLevel:
		return "info"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
