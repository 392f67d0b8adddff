package plugins

import "time"

// HealthStatus is the coarse state a HealthReport carries.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is a point-in-time health summary of a plugin.
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HealthReporter is implemented by plugins that report their own health.
// Plugins without it count as healthy while loaded.
type HealthReporter interface {
	Health() HealthReport
}
