package kafka

import (
	"context"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

const publisherSource = "cdss-pipeline"

// BatchPublisher is the part of Producer the chunk publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error)
}

// ChunkPublisher sends each chunk as a chunk.ready envelope keyed by chunk id.
type ChunkPublisher struct {
	producer BatchPublisher
	topic    string
	runID    string
}

// NewChunkPublisher publishes to topic, or TopicChunkReady when empty.
func NewChunkPublisher(p BatchPublisher, topic string) *ChunkPublisher {
	if topic == "" {
		topic = TopicChunkReady
	}
	return &ChunkPublisher{producer: p, topic: topic}
}

// WithRunID returns a copy that stamps runID on every envelope.
func (c *ChunkPublisher) WithRunID(runID string) *ChunkPublisher {
	clone := *c
	clone.runID = runID
	return &clone
}

// PublishChunks publishes chunks in one batch. Any failed message fails the
// call with the first per-message error as cause.
func (c *ChunkPublisher) PublishChunks(ctx context.Context, chunks []clinical.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	msgs := make([]*ProducerMessage, 0, len(chunks))
	for _, ch := range chunks {
		env, err := NewEventEnvelope(EventChunkReady, publisherSource, ch)
		if err != nil {
			return err
		}
		env.RunID = c.runID
		env.Metadata = map[string]string{"source": ch.Source, "doc_type": ch.Metadata.DocType}
		msg, err := env.ToMessage(c.topic, []byte(ch.ChunkID))
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	res, err := c.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		if len(res.Errors) > 0 && res.Errors[0].Err != nil {
			return errors.Wrapf(res.Errors[0].Err, errors.ErrCodeMessagingError, "%d of %d chunks not published", res.Failed, len(chunks))
		}
		return errors.Newf(errors.ErrCodeMessagingError, "%d of %d chunks not published", res.Failed, len(chunks))
	}
	return nil
}

//Personal.AI order the ending
