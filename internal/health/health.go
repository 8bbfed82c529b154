// Package health provides system health monitoring and status reporting.
package health

import "github.com/vietanh/keeper/internal/resilience/healing"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// IntegrationHealth contains health metrics for one external integration.
type IntegrationHealth struct {
	Integration string        `json:"integration"`
	Status      SystemStatus  `json:"status"`
	Healing     healing.State `json:"healing"`
}

// QueueHealth contains the offline mutation queue depth.
type QueueHealth struct {
	Status       SystemStatus `json:"status"`
	Pending      int          `json:"pending"`
	DeadLettered int          `json:"dead_lettered"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus                 `json:"system_status"`
	Integrations map[string]IntegrationHealth `json:"integrations"`
	Queue        QueueHealth                  `json:"queue"`
}
