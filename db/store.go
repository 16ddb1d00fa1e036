package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/pkg/errors"
	"github.com/qubic/chains-status/domain"
)

var ErrNotFound = errors.New("store resource not found")

const lastSnapshotKey = "snapshot"

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(storeDir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "chains-status-internal-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &PebbleStore{db: db}, nil
}

// Publish persists the snapshot, so that it can be restored after a restart.
func (ps *PebbleStore) Publish(_ context.Context, snapshot *domain.Snapshot) error {
	return ps.SetLastSnapshot(snapshot)
}

func (ps *PebbleStore) SetLastSnapshot(snapshot *domain.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshalling snapshot")
	}

	err = ps.db.Set([]byte(lastSnapshotKey), value, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "storing snapshot of generation [%d]", snapshot.Generation)
	}
	return nil
}

func (ps *PebbleStore) GetLastSnapshot() (*domain.Snapshot, error) {
	value, closer, err := ps.db.Get([]byte(lastSnapshotKey))
	if errors.Is(err, pebble.ErrNotFound) {
		log.Printf("[WARN] key [%s] not found.", lastSnapshotKey)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting value for key [%s]", lastSnapshotKey)
	}
	defer closer.Close()

	var snapshot domain.Snapshot
	err = json.Unmarshal(value, &snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshalling snapshot")
	}
	return &snapshot, nil
}

func (ps *PebbleStore) deleteLastSnapshot() error {
	err := ps.db.Delete([]byte(lastSnapshotKey), pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "deleting key [%s]", lastSnapshotKey)
	}
	return nil
}

func (ps *PebbleStore) Close() error {
	return ps.db.Close()
}
