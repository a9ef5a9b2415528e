package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"xquisito-tap/internal/domain"
)

const stateTable = "client_state"

type stateRow struct {
	DeviceID string
	Key      string
	Value    string
}

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		stateTable: {
			Name: stateTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "DeviceID"},
							&memdb.StringFieldIndex{Field: "Key"},
						},
					},
				},
				"device": {
					Name:    "device",
					Indexer: &memdb.StringFieldIndex{Field: "DeviceID"},
				},
			},
		},
	},
}

type memoryStore struct {
	db *memdb.MemDB
}

// NewMemory returns a Store kept in process memory. Used when no database is configured.
func NewMemory() (Store, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("init memdb: %w", err)
	}
	return &memoryStore{db: db}, nil
}

func (s *memoryStore) Get(_ context.Context, device, key string) (string, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(stateTable, "id", device, key)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", domain.ErrNotFound
	}
	return raw.(*stateRow).Value, nil
}

func (s *memoryStore) Set(_ context.Context, device, key, value string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(stateTable, &stateRow{DeviceID: device, Key: key, Value: value}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, device, key string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(stateTable, "id", device, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return domain.ErrNotFound
	}
	if err := txn.Delete(stateTable, raw); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *memoryStore) DeleteAll(_ context.Context, device string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(stateTable, "device", device); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
