package health

import (
	"fmt"
	"strings"
	"time"
)

// Status values
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded creates a degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Aggregate combines sub-statuses into one. The worst sub-status wins and
// the message names the components that are not healthy, e.g.
// "1 of 2 unhealthy: nats".
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	var unhealthy, degraded []string
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	total := len(subStatuses)
	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component,
			fmt.Sprintf("%d of %d unhealthy: %s", len(unhealthy), total, strings.Join(unhealthy, ", ")))
	case len(degraded) > 0:
		status = NewDegraded(component,
			fmt.Sprintf("%d of %d degraded: %s", len(degraded), total, strings.Join(degraded, ", ")))
	default:
		status = NewHealthy(component, fmt.Sprintf("All %d sub-components healthy", total))
	}

	status.SubStatuses = make([]Status, total)
	copy(status.SubStatuses, subStatuses)
	return status
}
