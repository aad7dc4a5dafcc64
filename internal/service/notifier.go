package service

import (
	"encoding/json"

	"ai-tutoring-engine/internal/mapper"
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// IStateNotifier receives every state change of the active session.
type IStateNotifier interface {
	Notify(snap store.Snapshot, state stream.ConnectionState)
}

type stateNotifier struct {
	publisher message.Publisher
	topic     string
	mapper    *mapper.TutorMapper
	logger    logger.ILogger
}

// NewStateNotifier publishes snapshots as JSON messages on topic.
func NewStateNotifier(publisher message.Publisher, topic string, log logger.ILogger) IStateNotifier {
	return &stateNotifier{
		publisher: publisher,
		topic:     topic,
		mapper:    mapper.NewTutorMapper(),
		logger:    log,
	}
}

func (n *stateNotifier) Notify(snap store.Snapshot, state stream.ConnectionState) {
	payload, err := json.Marshal(n.mapper.SnapshotToDTO(snap, string(state)))
	if err != nil {
		n.logger.Error("StateNotifier", "Failed to marshal snapshot", map[string]interface{}{"error": err.Error()})
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if err := n.publisher.Publish(n.topic, msg); err != nil {
		n.logger.Warn("StateNotifier", "Failed to publish snapshot", map[string]interface{}{"topic": n.topic, "error": err.Error()})
	}
}
