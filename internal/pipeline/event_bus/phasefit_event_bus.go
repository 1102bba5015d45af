package event_bus

import (
	"encoding/json"
	"fmt"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// PhasefitEventBus carries events of one type between pipeline stages. Events travel as JSON
// so every subscriber decodes its own copy.
type PhasefitEventBus[EventType any] interface {
	Subscribe(topic string, handler func(event EventType) error, transactional bool) error
	Unsubscribe(topic string) error
	Publish(topic string, event EventType) error
	WaitAsync()
}

type PhasefitEventBusImpl[EventType any] struct {
	eventBus EventBus.Bus
	handlers map[string]func(string)
	logger   *zap.Logger
}

func NewPhasefitEventBus[EventType any](
	eventBus EventBus.Bus,
	logger *zap.Logger,
) *PhasefitEventBusImpl[EventType] {
	return &PhasefitEventBusImpl[EventType]{
		eventBus: eventBus,
		handlers: make(map[string]func(string)),
		logger:   logger,
	}
}

func (ev *PhasefitEventBusImpl[EventType]) Subscribe(
	topic string,
	handler func(event EventType) error,
	transactional bool,
) error {
	wrapped := func(arg string) {
		var event EventType
		if err := json.Unmarshal([]byte(arg), &event); err != nil {
			ev.logger.Error("Failed to unmarshal event during subscription of topic",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return
		}
		if err := handler(event); err != nil {
			ev.logger.Error("Failed to handle event during subscription of topic",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}
	if err := ev.eventBus.SubscribeAsync(topic, wrapped, transactional); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	ev.handlers[topic] = wrapped
	return nil
}

func (ev *PhasefitEventBusImpl[EventType]) Unsubscribe(topic string) error {
	handler, ok := ev.handlers[topic]
	if !ok {
		return nil
	}
	if err := ev.eventBus.Unsubscribe(topic, handler); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}
	delete(ev.handlers, topic)
	return nil
}

func (ev *PhasefitEventBusImpl[EventType]) Publish(topic string, event EventType) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event during publishing of topic %s: %w", topic, err)
	}
	ev.eventBus.Publish(topic, string(eventBytes))
	return nil
}

// WaitAsync blocks until every asynchronous handler has returned.
func (ev *PhasefitEventBusImpl[EventType]) WaitAsync() {
	ev.eventBus.WaitAsync()
}
