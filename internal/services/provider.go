package services

import (
	"context"
)

// Provider probes one external dependency of the dashboard
type Provider interface {
	// Type returns the dependency name
	Type() string

	// HealthCheck checks if the dependency is available
	HealthCheck(ctx context.Context) error

	// Diagnose returns descriptive facts about a reachable dependency
	Diagnose(ctx context.Context) (map[string]string, error)
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the service type
func (p *BaseProvider) Type() string {
	return p.serviceType
}
