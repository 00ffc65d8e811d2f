package replica

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/google/uuid"
)

var factsBucket = []byte("facts")

// BoltReplica is a durable, single-process Replica backed by bbolt.
// Each entity's Fact is stored JSON-encoded under key "id\x00type"; bbolt's
// Update transaction gives the whole Commit call atomicity across entities
// for free, matching the spec's "atomically publishes changes" guarantee.
type BoltReplica struct {
	db *bolt.DB
}

// OpenBoltReplica opens or creates a bbolt-backed replica at path.
func OpenBoltReplica(path string) (*BoltReplica, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt replica: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(factsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create facts bucket: %w", err)
	}
	return &BoltReplica{db: db}, nil
}

func factKey(k EntityKey) []byte {
	return []byte(k.ID + "\x00" + k.Type)
}

type boltFact struct {
	Value interface{} `json:"value"`
	Rev   string      `json:"rev"`
}

func (r *BoltReplica) Get(ctx context.Context, key EntityKey) (Fact, bool, error) {
	var stored boltFact
	found := false
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(factsBucket)
		data := b.Get(factKey(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return Fact{}, false, &ConnectionError{Err: err}
	}
	if !found {
		return Fact{}, false, nil
	}
	return Fact{Key: key, Value: stored.Value, Rev: stored.Rev}, true, nil
}

func (r *BoltReplica) Commit(ctx context.Context, changes []Change) (Result, error) {
	revs := make(map[EntityKey]string, len(changes))

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(factsBucket)

		for _, c := range changes {
			data := b.Get(factKey(c.Key))
			currentRev := ""
			if data != nil {
				var stored boltFact
				if err := json.Unmarshal(data, &stored); err != nil {
					return &TransactionError{Err: err}
				}
				currentRev = stored.Rev
			}
			if c.ExpectedRev != currentRev {
				return &ConflictError{Key: c.Key}
			}
		}

		for _, c := range changes {
			newRev := uuid.NewString()
			encoded, err := json.Marshal(boltFact{Value: c.Value, Rev: newRev})
			if err != nil {
				return &TransactionError{Err: err}
			}
			if err := b.Put(factKey(c.Key), encoded); err != nil {
				return &TransactionError{Err: err}
			}
			revs[c.Key] = newRev
		}
		return nil
	})
	if err != nil {
		switch err.(type) {
		case *ConflictError, *TransactionError:
			return Result{}, err
		default:
			return Result{}, &ConnectionError{Err: err}
		}
	}
	return Result{Revs: revs}, nil
}

func (r *BoltReplica) Close() error {
	return r.db.Close()
}
