package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// CanvasChangedTopic carries one ChangeEvent per atomic store transition.
const CanvasChangedTopic = "canvas.changed"

// ChangeKind names the transition that just happened.
type ChangeKind string

const (
	ChangeCanvasReloaded ChangeKind = "canvas-reloaded"
	ChangeNodeStreaming  ChangeKind = "node-streaming"
	ChangeNodeCompleted  ChangeKind = "node-completed"
	ChangeSelection      ChangeKind = "selection"
	ChangeError          ChangeKind = "error"
)

// ChangeEvent is what store subscribers receive instead of observing field
// mutations directly. It names the transition and the entities it touched;
// consumers re-read the store snapshot for actual state.
type ChangeEvent struct {
	Kind   ChangeKind    `json:"kind"`
	TreeID canvas.TreeID `json:"treeId,omitempty"`
	NodeID canvas.NodeID `json:"nodeId,omitempty"`
	Error  string        `json:"error,omitempty"`
	At     time.Time     `json:"at"`
}

// ChangeBus is an in-process pub/sub for store change notifications, backed
// by a watermill gochannel.
type ChangeBus struct {
	pubSub *gochannel.GoChannel
}

type ChangeBusOption func(*changeBusConfig)

type changeBusConfig struct {
	logger watermill.LoggerAdapter
}

func WithBusLogger(logger watermill.LoggerAdapter) ChangeBusOption {
	return func(c *changeBusConfig) {
		c.logger = logger
	}
}

func NewChangeBus(options ...ChangeBusOption) *ChangeBus {
	cfg := &changeBusConfig{
		logger: watermill.NopLogger{},
	}
	for _, o := range options {
		o(cfg)
	}

	return &ChangeBus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, cfg.logger),
	}
}

// Publish marshals the change event and publishes it on the canvas topic.
func (b *ChangeBus) Publish(ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(CanvasChangedTopic, msg)
}

// PublishBlind publishes and logs failures instead of returning them. Change
// notification is best-effort; a failed publish never fails the mutation that
// triggered it.
func (b *ChangeBus) PublishBlind(ev ChangeEvent) {
	if err := b.Publish(ev); err != nil {
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish change event")
	}
}

// Subscribe returns a channel of decoded change events. The channel closes
// when the context is cancelled or the bus is closed.
func (b *ChangeBus) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, CanvasChangedTopic)
	if err != nil {
		return nil, err
	}

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev ChangeEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("failed to decode change event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *ChangeBus) Close() error {
	return b.pubSub.Close()
}

// WatermillZerologAdapter routes watermill logging through zerolog, mapping
// watermill's chatty INFO level down to debug.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func NewWatermillLogger(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{logger: logger}
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(map[string]interface{}(fields)).Err(err).Msg(msg)
}

func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.logger.With().Fields(map[string]interface{}(fields)).Logger()
	return &WatermillZerologAdapter{logger: l}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}
