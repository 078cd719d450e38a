// Package dispatcher is the per-request entry point: it loads a LiveState
// snapshot, builds the initial filter context, and converts any uncaught
// pipeline error into a 401 so internal errors never reach the client.
package dispatcher

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"

	"github.com/sealproxy/sealproxy/internal/filter"
	"github.com/sealproxy/sealproxy/internal/state"
	"github.com/sealproxy/sealproxy/internal/telemetry"
)

// Dispatcher adapts http.Handler to the filter pipeline, tracing each
// request and recording its outcome in metrics.
type Dispatcher struct {
	tracer  *telemetry.Provider
	metrics *telemetry.Metrics
}

// New builds a Dispatcher. Either argument may be nil to disable that
// concern.
func New(tracer *telemetry.Provider, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{tracer: tracer, metrics: metrics}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	requestID := uuid.NewString()
	ctx := req.Context()

	var endSpan func()
	var failSpan func(error)
	if d.tracer != nil {
		spanCtx, span := d.tracer.StartRequestSpan(ctx, req.Method, req.URL.RequestURI(), requestID)
		ctx = spanCtx
		endSpan = func() { span.End() }
		failSpan = func(err error) { span.SetStatus(codes.Error, err.Error()) }
	}
	if endSpan != nil {
		defer endSpan()
	}

	req = req.WithContext(ctx)
	s := state.Load()
	if s == nil {
		log.Warn().Str("request_id", requestID).Msg("no live configuration loaded")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	start := time.Now()
	outcome, err := filter.Chain(w, req, s.Runtime, s.Chain)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("pipeline error, responding 401")
		if failSpan != nil {
			failSpan(err)
		}
		if d.metrics != nil {
			d.metrics.ObserveInternalError()
			d.metrics.ObserveOutcome(outcome.FilterKind, "deny", "")
		}
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if d.metrics != nil {
		if outcome.Result == "allow" {
			d.metrics.ObserveUpstreamLatency(elapsed)
		}
		d.metrics.ObserveOutcome(outcome.FilterKind, outcome.Result, statusClass(outcome.Status))
	}
}

// statusClass buckets an HTTP status code into "2xx".."5xx", or "" if the
// request never reached the upstream (status 0).
func statusClass(status int) string {
	if status == 0 {
		return ""
	}
	return fmt.Sprintf("%dxx", status/100)
}
