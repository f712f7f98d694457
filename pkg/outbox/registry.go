package outbox

import (
	"context"
	"fmt"

	"github.com/stclabs/engage-backend/pkg/db/models"
)

// Handler performs the side effect for one claimed event. A non-nil
// error marks the event FAILED.
type Handler func(ctx context.Context, event models.OutboxEvent) error

// Registry maps topics to handlers. Registration happens once at boot;
// the registry is read-only afterwards.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(topic string, handler Handler) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required for topic %q", topic)
	}
	if _, exists := r.handlers[topic]; exists {
		return fmt.Errorf("handler already registered for topic %q", topic)
	}
	r.handlers[topic] = handler
	return nil
}

func (r *Registry) Resolve(topic string) (Handler, bool) {
	handler, ok := r.handlers[topic]
	return handler, ok
}

func (r *Registry) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}
