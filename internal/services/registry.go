package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/moodle"
	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// Report is the outcome of probing one dependency
type Report struct {
	Name      string            `json:"name"`
	Healthy   bool              `json:"healthy"`
	LatencyMS int64             `json:"latency_ms"`
	Cause     string            `json:"cause,omitempty"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Registry manages dependency providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll checks health of all registered providers
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]error)
	for name, provider := range r.providers {
		results[name] = provider.HealthCheck(ctx)
	}
	return results
}

// DiagnoseAll probes every provider and collects details from the healthy ones.
// Reports are sorted by name.
func (r *Registry) DiagnoseAll(ctx context.Context) []Report {
	reports := make([]Report, 0, len(r.List()))
	for _, name := range r.List() {
		provider := r.Get(name)
		if provider == nil {
			continue
		}
		reports = append(reports, diagnose(ctx, name, provider))
	}
	return reports
}

func diagnose(ctx context.Context, name string, provider Provider) Report {
	start := time.Now()
	report := Report{Name: name}

	err := provider.HealthCheck(ctx)
	if err == nil {
		report.Details, err = provider.Diagnose(ctx)
	}
	report.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		report.Error = err.Error()
		report.Cause = failureCause(err)
		return report
	}

	report.Healthy = true
	return report
}

func failureCause(err error) string {
	var cerr *storage.ConnError
	if errors.As(err, &cerr) {
		return string(cerr.Cause)
	}
	var merr *moodle.MoodleError
	if errors.As(err, &merr) {
		if merr.ErrorCode != "" {
			return "moodle_" + merr.ErrorCode
		}
		return "moodle_error"
	}
	var terr *moodle.TransportError
	if errors.As(err, &terr) {
		if terr.Protocol {
			return "protocol_error"
		}
		return "transport_error"
	}
	return ""
}

// Unregister removes a provider from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}
