package contextserver

import (
	"context"
	"time"
)

// Status is the aggregate health of the registered adapters.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ModelStatus is the availability of one adapter.
type ModelStatus struct {
	ID        string `json:"id"`
	ModelName string `json:"model_name"`
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// HealthReport is the result of HealthCheck.
type HealthReport struct {
	OverallStatus Status                 `json:"overall_status"`
	Models        map[string]ModelStatus `json:"models"`
	Timestamp     time.Time              `json:"timestamp"`
}

// AvailableModels checks every registered adapter, in registration order.
// A failing or panicking check marks that adapter unavailable.
func (s *Server) AvailableModels(ctx context.Context) []ModelStatus {
	adapters := s.registered()
	out := make([]ModelStatus, 0, len(adapters))
	for _, a := range adapters {
		id := a.Identity()
		ms := ModelStatus{ID: id.ID, ModelName: id.ModelName, Provider: id.Provider}
		available, err := checkAvailable(ctx, a)
		ms.Available = available
		if err != nil {
			ms.Error = err.Error()
		}
		out = append(out, ms)
	}
	return out
}

// HealthCheck aggregates adapter availability: unhealthy when none are
// available, degraded when fewer than half are, healthy otherwise.
func (s *Server) HealthCheck(ctx context.Context) HealthReport {
	models := s.AvailableModels(ctx)
	report := HealthReport{
		Models:    make(map[string]ModelStatus, len(models)),
		Timestamp: s.now().UTC(),
	}
	available := 0
	for _, m := range models {
		report.Models[m.ID] = m
		if m.Available {
			available++
		}
	}
	report.OverallStatus = aggregate(available, len(models))
	return report
}

func aggregate(available, total int) Status {
	switch {
	case available == 0:
		return StatusUnhealthy
	case available*2 < total:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
