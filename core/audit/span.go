// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package audit

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"runtime/trace"
	"strconv"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
	"github.com/rs/zerolog/log"
)

// Span represents an HTTP request in flight.
type Span struct {
	// only these fields are set automatically
	task     *trace.Task
	start    time.Time
	duration time.Duration
	metric   *servertiming.Metric

	Destination TrafficDestination
	RequestID   string
	Method      string
	URL         string // must not contain credentials
	StatusCode  int
	Error       error
	Body        []byte // Body is not logged as is; only for response saving

	responseFilename string
}

// TrafficDestination describes the logical destination of an HTTP request.
type TrafficDestination string

// Constants for traffic destinations.
const (
	ToUser       TrafficDestination = "user"
	ToTranslator TrafficDestination = "translator"

	responseFilePermissions = 0o600
)

var (
	// SaveResponses indicates whether to save backend response bodies to storage.
	SaveResponses bool

	// ResponseDirectory is the directory where response bodies are saved.
	ResponseDirectory string
)

// ServerTimingName encodes the span as a Server-Timing metric name.
func (span Span) ServerTimingName() string {
	// base64 without trailing '=' matches the token syntax
	return string(span.Destination) + "$" + span.Method + "$" + base64.RawURLEncoding.EncodeToString([]byte(span.URL))
}

// Begin starts timing the span and registers a Server-Timing metric if ctx carries one.
func (span *Span) Begin(ctx context.Context) context.Context {
	span.start = time.Now()

	ctx, span.task = trace.NewTask(ctx, "http."+string(span.Destination))
	if timing := servertiming.FromContext(ctx); timing != nil {
		span.metric = timing.NewMetric(span.ServerTimingName())
		span.metric.Extra = map[string]string{
			"start": strconv.FormatFloat(float64(span.start.UnixNano())/float64(time.Millisecond), 'f', -1, 64),
		}
	}

	return ctx
}

// End stops timing. Calling it more than once is harmless.
func (span *Span) End() {
	if span.task == nil {
		return
	}

	span.duration = time.Since(span.start)
	span.task.End()

	if span.metric != nil {
		span.metric.Duration = span.duration
	}

	span.task = nil
}

// Duration reports the measured span length; zero until End is called.
func (span Span) Duration() time.Duration {
	return span.duration
}

// Log writes the span at debug level, saving the response body first if enabled.
func (span Span) Log() {
	if span.Destination == ToTranslator && len(span.Body) > 0 && SaveResponses {
		filename := path.Join(ResponseDirectory, path.Base(span.RequestID))

		if err := os.WriteFile(filename, span.Body, responseFilePermissions); err != nil {
			log.Err(err).
				Str("request_id", span.RequestID).
				Msg("Failed to save response")
		} else {
			span.responseFilename = filename
		}
	}

	event := log.Debug()

	event.Str("sys", "http")
	event.Str("method", span.Method)
	event.Str("url", span.URL)
	event.Int("status_code", span.StatusCode)
	event.Str("len", humanizeSize(len(span.Body)))
	event.Dur("dur", span.duration)
	event.Str("destination", string(span.Destination))
	event.Str("request_id", span.RequestID)

	if span.responseFilename != "" {
		event.Str("response_filename", span.responseFilename)
	}

	if span.Error != nil {
		event.Err(span.Error)
	}

	event.Send()
}

const (
	bytesInKB = 1024
	bytesInMB = bytesInKB * bytesInKB
)

func humanizeSize(x int) string {
	switch {
	case x < bytesInKB:
		return strconv.Itoa(x)
	case x < bytesInMB:
		return fmt.Sprintf("%.2fK", float64(x)/bytesInKB)
	default:
		return fmt.Sprintf("%.2fM", float64(x)/bytesInMB)
	}
}
