// Package health provides health status reporting for registry collaborators
package health

import (
	"time"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

// NewHealthy creates a healthy status for a component
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status for a component
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status for a component
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    StatusUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines sub-statuses into a system-level status. The
// aggregate is unhealthy if any sub-status is unhealthy, degraded if
// any is degraded, healthy otherwise.
func Aggregate(system string, subStatuses []Status) Status {
	status := StatusHealthy
	message := "all components healthy"

	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			status = StatusUnhealthy
			message = sub.Component + ": " + sub.Message
			break
		}
		if sub.IsDegraded() && status == StatusHealthy {
			status = StatusDegraded
			message = sub.Component + ": " + sub.Message
		}
	}

	return Status{
		Component:   system,
		Healthy:     status == StatusHealthy,
		Status:      status,
		Message:     message,
		Timestamp:   time.Now(),
		SubStatuses: subStatuses,
	}
}
