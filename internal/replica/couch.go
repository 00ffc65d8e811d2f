package replica

import (
	"context"
	"fmt"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // registers the "couch" driver
)

// CouchReplica stores each entity as a CouchDB document, using CouchDB's
// MVCC `_rev` as the spec's causal Fact reference: a Commit that supplies
// a stale ExpectedRev is rejected by CouchDB itself with HTTP 409, which
// this replica surfaces as ConflictError.
type CouchReplica struct {
	client *kivik.Client
	db     *kivik.DB
}

// OpenCouchReplica connects to CouchDB at url and ensures database exists.
func OpenCouchReplica(ctx context.Context, url, database string) (*CouchReplica, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	exists, err := client.DBExists(ctx, database)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if !exists {
		if err := client.CreateDB(ctx, database); err != nil {
			return nil, &ConnectionError{Err: err}
		}
	}

	return &CouchReplica{client: client, db: client.DB(database)}, nil
}

type couchDoc struct {
	ID    string      `json:"_id"`
	Rev   string      `json:"_rev,omitempty"`
	Value interface{} `json:"value"`
}

func docID(k EntityKey) string {
	return k.ID + ":" + k.Type
}

func (r *CouchReplica) Get(ctx context.Context, key EntityKey) (Fact, bool, error) {
	row := r.db.Get(ctx, docID(key))
	if row.Err() != nil {
		if kivik.HTTPStatus(row.Err()) == 404 {
			return Fact{}, false, nil
		}
		return Fact{}, false, &ConnectionError{Err: row.Err()}
	}

	var doc couchDoc
	if err := row.ScanDoc(&doc); err != nil {
		return Fact{}, false, &ConnectionError{Err: err}
	}
	return Fact{Key: key, Value: doc.Value, Rev: doc.Rev}, true, nil
}

// Commit applies each change as an independent CouchDB Put; it is not a
// cross-document ACID transaction (CouchDB has none), so a partial failure
// can leave earlier changes in this batch committed — callers needing
// atomicity across spaces should prefer BoltReplica or MemoryReplica for
// that space, matching the spec's note that the core's consistency
// guarantee is about read-invariant validation, not multi-document ACID.
func (r *CouchReplica) Commit(ctx context.Context, changes []Change) (Result, error) {
	revs := make(map[EntityKey]string, len(changes))

	for _, c := range changes {
		rev, err := r.db.Put(ctx, docID(c.Key), couchDoc{
			ID:    docID(c.Key),
			Rev:   c.ExpectedRev,
			Value: c.Value,
		})
		if err != nil {
			if kivik.HTTPStatus(err) == 409 {
				return Result{}, &ConflictError{Key: c.Key}
			}
			return Result{}, &TransactionError{Err: fmt.Errorf("put %s: %w", docID(c.Key), err)}
		}
		revs[c.Key] = rev
	}
	return Result{Revs: revs}, nil
}

func (r *CouchReplica) Close() error {
	return nil
}
