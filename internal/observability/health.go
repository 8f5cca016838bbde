package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	serviceName    = "doc-audio-service"
	serviceVersion = "1.0.0"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Optional  bool   `json:"optional,omitempty"`
}

// HealthCheckFunc reports whether a dependency is usable
type HealthCheckFunc func(ctx context.Context) (bool, error)

// DependencyCheck names a readiness probe. Optional dependencies degrade the
// service instead of making it unready.
type DependencyCheck struct {
	Name     string
	Check    HealthCheckFunc
	Optional bool
}

// HealthCheckHandler handles health check requests
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "healthy",
			Service:   serviceName,
			Version:   serviceVersion,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// ReadinessHandler handles readiness check requests
// Checks are passed in by the caller to avoid import cycles
func ReadinessHandler(checks ...DependencyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := HealthStatus{
			Status:       "ready",
			Service:      serviceName,
			Version:      serviceVersion,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: RunChecks(ctx, checks...),
		}

		code := http.StatusOK
		for _, dep := range status.Dependencies {
			if dep.Status == "healthy" {
				continue
			}
			if dep.Optional {
				if status.Status == "ready" {
					status.Status = "degraded"
				}
				continue
			}
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}

// RunChecks executes each dependency check and records its latency
func RunChecks(ctx context.Context, checks ...DependencyCheck) map[string]DependencyStatus {
	dependencies := make(map[string]DependencyStatus, len(checks))
	for _, c := range checks {
		if c.Check == nil {
			continue
		}

		start := time.Now()
		healthy, err := c.Check(ctx)
		latency := time.Since(start).Milliseconds()

		dep := DependencyStatus{
			Status:    "healthy",
			LatencyMs: latency,
			Optional:  c.Optional,
		}
		if err != nil || !healthy {
			dep.Status = "unhealthy"
			if err != nil {
				dep.Message = err.Error()
			}
		}
		dependencies[c.Name] = dep
	}
	return dependencies
}
