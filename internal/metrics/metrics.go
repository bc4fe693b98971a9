// Package metrics exports LLM, pipeline and store telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/alexanderramin/smartplan/internal/store"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "smartplan"

// Observer implements llm.Observer, pipeline.UseCaseObserver and
// store.Observer on one set of collectors.
type Observer struct {
	llmDuration     *promclient.HistogramVec
	llmErrors       *promclient.CounterVec
	useCaseDuration *promclient.HistogramVec
	useCaseErrors   *promclient.CounterVec
	storeDuration   *promclient.HistogramVec
	storeErrors     *promclient.CounterVec
}

// NewObserver registers the collectors on reg. Collectors already registered
// under the same names are reused.
func NewObserver(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	o := &Observer{}
	var err error
	if o.llmDuration, err = registerHistogram(reg, promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Latency of language model calls.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, "task", "provider"); err != nil {
		return nil, err
	}
	if o.llmErrors, err = registerCounter(reg, promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_errors_total",
		Help:      "Count of failed language model calls.",
	}, "task", "provider", "code"); err != nil {
		return nil, err
	}
	if o.useCaseDuration, err = registerHistogram(reg, promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "use_case_duration_seconds",
		Help:      "Latency of pipeline use cases.",
		Buckets:   promclient.DefBuckets,
	}, "use_case"); err != nil {
		return nil, err
	}
	if o.useCaseErrors, err = registerCounter(reg, promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "use_case_errors_total",
		Help:      "Count of failed pipeline use cases.",
	}, "use_case"); err != nil {
		return nil, err
	}
	if o.storeDuration, err = registerHistogram(reg, promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency for document store operations.",
		Buckets:   promclient.DefBuckets,
	}, "operation"); err != nil {
		return nil, err
	}
	if o.storeErrors, err = registerCounter(reg, promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_errors_total",
		Help:      "Count of document store failures.",
	}, "operation"); err != nil {
		return nil, err
	}
	return o, nil
}

func registerHistogram(reg promclient.Registerer, opts promclient.HistogramOpts, labels ...string) (*promclient.HistogramVec, error) {
	h := promclient.NewHistogramVec(opts, labels)
	if err := reg.Register(h); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promclient.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s histogram: %w", opts.Name, err)
	}
	return h, nil
}

func registerCounter(reg promclient.Registerer, opts promclient.CounterOpts, labels ...string) (*promclient.CounterVec, error) {
	c := promclient.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promclient.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s counter: %w", opts.Name, err)
	}
	return c, nil
}

// OnCallComplete records one language model call.
func (o *Observer) OnCallComplete(event llm.LLMCallEvent) {
	if o == nil {
		return
	}
	task := string(event.Task)
	o.llmDuration.WithLabelValues(task, event.Provider).Observe(float64(event.LatencyMs) / 1000)
	if !event.Success {
		o.llmErrors.WithLabelValues(task, event.Provider, event.ErrorCode).Inc()
	}
}

// ObserveUseCase records one pipeline use case.
func (o *Observer) ObserveUseCase(_ context.Context, event pipeline.UseCaseEvent) {
	if o == nil {
		return
	}
	o.useCaseDuration.WithLabelValues(event.Name).Observe(event.Duration.Seconds())
	if !event.Success {
		o.useCaseErrors.WithLabelValues(event.Name).Inc()
	}
}

// ObserveStore records one store operation. Misses are not failures.
func (o *Observer) ObserveStore(op string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.storeDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.storeErrors.WithLabelValues(op).Inc()
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g promclient.Gatherer) http.Handler {
	if g == nil {
		g = promclient.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var (
	_ llm.Observer             = (*Observer)(nil)
	_ pipeline.UseCaseObserver = (*Observer)(nil)
	_ store.Observer           = (*Observer)(nil)
)
