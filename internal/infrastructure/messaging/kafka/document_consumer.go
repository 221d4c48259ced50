package kafka

import (
	"context"
	"encoding/json"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/ingestion"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// DocumentIngestedPayload is the payload of a document.ingested envelope.
// With Raw set, each Text is cleaned and its date and type inferred unless
// the producer already supplied them.
type DocumentIngestedPayload struct {
	Documents []clinical.Document `json:"documents"`
	Raw       bool                `json:"raw,omitempty"`
}

// ProcessFunc runs the pipeline over one batch of documents.
type ProcessFunc func(ctx context.Context, docs []clinical.Document) error

// NewDocumentHandler returns a MessageHandler for TopicDocumentIngested. The
// payload is either a DocumentIngestedPayload or a single Document. Malformed
// messages fail with validation or serialization codes so the consumer
// dead-letters them without retrying.
func NewDocumentHandler(process ProcessFunc, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != "" && env.EventType != EventDocumentIngested {
			return errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
		}

		docs, err := decodeDocuments(env)
		if err != nil {
			return err
		}
		logger.Info("documents received",
			logging.String("event_id", env.EventID),
			logging.RunID(env.RunID),
			logging.Int("documents", len(docs)))
		return process(ctx, docs)
	}
}

func decodeDocuments(env *EventEnvelope) ([]clinical.Document, error) {
	var payload DocumentIngestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return nil, err
	}
	if len(payload.Documents) == 0 {
		var single clinical.Document
		if err := json.Unmarshal(env.Payload, &single); err != nil || single.Text == "" {
			return nil, errors.New(errors.ErrCodeNoDocuments, "payload carries no documents").WithDetail(env.EventID)
		}
		payload.Documents = []clinical.Document{single}
	}
	if !payload.Raw {
		return payload.Documents, nil
	}

	docs := make([]clinical.Document, 0, len(payload.Documents))
	for _, d := range payload.Documents {
		prepared, err := ingestion.Prepare(d.Source, d.Text)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "document rejected").WithDetail(d.Source)
		}
		if d.Date != nil {
			prepared.Date = d.Date
		}
		if d.DocType != "" {
			prepared.DocType = d.DocType
		}
		prepared.Section = d.Section
		docs = append(docs, prepared)
	}
	return docs, nil
}

//Personal.AI order the ending
