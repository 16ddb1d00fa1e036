package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qubic/chains-status/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

const recordKey = "chains-status"

type StatusProducer struct {
	kcl *kgo.Client
}

func NewStatusProducer(client *kgo.Client) *StatusProducer {
	return &StatusProducer{kcl: client}
}

func (sp *StatusProducer) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	record, err := createRecord(snapshot)
	if err != nil {
		return fmt.Errorf("creating chains status record: %w", err)
	}

	err = sp.kcl.ProduceSync(ctx, record).FirstErr()
	if err != nil {
		return fmt.Errorf("producing chains status record: %w", err)
	}

	return nil
}

// all records share the same key so that they land in one partition and keep their order
func createRecord(snapshot *domain.Snapshot) (*kgo.Record, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshalling to json: %w", err)
	}

	return &kgo.Record{
		Key:   []byte(recordKey),
		Value: payload,
	}, nil
}
