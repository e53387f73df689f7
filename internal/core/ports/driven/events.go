package driven

import "github.com/custodia-labs/ragline/internal/core/domain"

// StatusPublisher receives embedding status transitions.
// Publish must not block the pipeline.
type StatusPublisher interface {
	Publish(event domain.StatusEvent)
}
