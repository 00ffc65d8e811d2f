// Package txn implements the storage transaction engine (spec.md §4.4): a
// state machine orchestrating per-space chronicles, exposing read/write/
// abort/commit, and driving parallel replica commits at commit time.
package txn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/evalgo/reactive-runtime/internal/chronicle"
	"github.com/evalgo/reactive-runtime/internal/jsonpath"
	"github.com/evalgo/reactive-runtime/internal/replica"
	"github.com/evalgo/reactive-runtime/internal/space"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status is one of the four states a Transaction can report, mirroring
// the teacher's OperationState phase names (pending/running/completed/
// failed) collapsed to the spec's ready/pending/done/error machine.
type Status string

const (
	StatusReady   Status = "ready"
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// ActivityEntry records one observed read or write, in the order the
// caller performed it.
type ActivityEntry struct {
	Read  *Address
	Write *Address
}

// StatusReport is the observable snapshot returned by Transaction.Status.
type StatusReport struct {
	Status   Status
	Branches []string
	Activity []ActivityEntry
	Error    error
}

// Option configures a Transaction at construction.
type Option func(*Transaction)

// WithWriteIsolation enables the legacy transaction model, which restricts
// a transaction to writing into exactly one space.
func WithWriteIsolation() Option {
	return func(t *Transaction) { t.writeIsolation = true }
}

// AuditRecorder persists a transaction's terminal outcome independent of
// the spaces it touched. internal/audit.Trail implements this.
type AuditRecorder interface {
	Record(ctx context.Context, txnID string, spaces []string, outcome string, txnErr error) error
}

// WithAudit attaches an AuditRecorder that observes every Commit/Abort
// outcome.
func WithAudit(rec AuditRecorder) Option {
	return func(t *Transaction) { t.audit = rec }
}

// Transaction is the per-request state machine described in spec.md §4.4.
type Transaction struct {
	ID string

	mu         sync.Mutex
	status     Status
	manager    *space.Manager
	chronicles map[string]*chronicle.Chronicle
	activity   []ActivityEntry
	err        error

	writeIsolation bool
	writeSpace     string
	audit          AuditRecorder

	log *logrus.Entry
}

// New creates a ready Transaction that opens chronicles lazily through
// manager.
func New(manager *space.Manager, log *logrus.Entry, opts ...Option) *Transaction {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &Transaction{
		ID:         uuid.NewString(),
		status:     StatusReady,
		manager:    manager,
		chronicles: map[string]*chronicle.Chronicle{},
		log:        log.WithField("txn", ""),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithField("txn", t.ID)
	return t
}

// ReadOptions configures a single Read call.
type ReadOptions struct{}

// sourcePathPrefix is the exact compatibility-shim trigger string from
// spec.md §9: a `path=["source"]` read whose string value begins with
// this prefix is additionally parsed as JSON before being returned.
const sourcePathPrefix = `{"/":`

// Read performs a read through the chronicle owning addr.Space, recording
// activity and a history invariant.
func (t *Transaction) Read(ctx context.Context, addr Address, _ ReadOptions) (interface{}, error) {
	t.mu.Lock()
	if t.status != StatusReady {
		t.mu.Unlock()
		return nil, &CompleteError{}
	}
	c, err := t.chronicleFor(addr.Space)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.activity = append(t.activity, ActivityEntry{Read: &addr})
	t.mu.Unlock()

	value, err := c.Read(ctx, addr.ID, addr.Type, addr.Path)
	if err != nil {
		return nil, err
	}

	if len(addr.Path) == 1 && addr.Path[0] == "source" {
		if s, ok := value.(string); ok && strings.HasPrefix(s, sourcePathPrefix) {
			var parsed interface{}
			if jerr := json.Unmarshal([]byte(s), &parsed); jerr == nil {
				return parsed, nil
			}
		}
	}
	return value, nil
}

// Write performs a write through the chronicle owning addr.Space,
// recording activity. Under the legacy write-isolation model, writing
// into a second space after the first returns WriteIsolationError.
func (t *Transaction) Write(ctx context.Context, addr Address, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusReady {
		return &CompleteError{}
	}

	if t.writeIsolation {
		if t.writeSpace == "" {
			t.writeSpace = addr.Space
		} else if t.writeSpace != addr.Space {
			return &WriteIsolationError{Open: t.writeSpace, Requested: addr.Space}
		}
	}

	c, err := t.chronicleFor(addr.Space)
	if err != nil {
		return err
	}

	if err := c.Write(addr.ID, addr.Type, addr.Path, value); err != nil {
		return err
	}
	t.activity = append(t.activity, ActivityEntry{Write: &addr})
	return nil
}

// chronicleFor returns (opening if necessary) the chronicle for space.
// Caller must hold t.mu.
func (t *Transaction) chronicleFor(spaceID string) (*chronicle.Chronicle, error) {
	if c, ok := t.chronicles[spaceID]; ok {
		return c, nil
	}
	r, err := t.manager.Open(spaceID)
	if err != nil {
		return nil, fmt.Errorf("open space %q: %w", spaceID, err)
	}
	c := chronicle.New(spaceID, r)
	t.chronicles[spaceID] = c
	return c, nil
}

// Abort transitions ready -> done(aborted). A second Abort (or any Abort
// after Commit) returns the transaction's existing terminal error, or
// CompleteError if it committed successfully, matching the idempotence
// property in spec.md §8.
func (t *Transaction) Abort(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusReady {
		if t.err != nil {
			return t.err
		}
		return &CompleteError{}
	}

	t.err = &AbortedError{Reason: reason}
	t.status = StatusError
	t.recordAudit(context.Background(), "aborted")
	return t.err
}

// recordAudit fires the attached AuditRecorder, if any, logging (but not
// propagating) a failure to record: the audit trail's own availability
// must never block a transaction's outcome.
func (t *Transaction) recordAudit(ctx context.Context, outcome string) {
	if t.audit == nil {
		return
	}
	spaces := make([]string, 0, len(t.chronicles))
	for s := range t.chronicles {
		spaces = append(spaces, s)
	}
	if err := t.audit.Record(ctx, t.ID, spaces, outcome, t.err); err != nil {
		t.log.WithError(err).Warn("failed to record transaction audit entry")
	}
}

// Commit folds every chronicle's novelty into per-space changes and
// commits them to their replicas in parallel, transitioning
// ready -> pending -> done(ok|error). It is idempotent: a second Commit
// call returns the first call's result without redoing any work.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.status != StatusReady {
		err := t.err
		t.mu.Unlock()
		if err != nil {
			return err
		}
		return nil
	}
	t.status = StatusPending

	type branch struct {
		space   string
		r       replica.Replica
		changes []chronicle.PendingChange
	}
	var branches []branch
	for s, c := range t.chronicles {
		changes, err := c.Close(ctx)
		if err != nil {
			t.status = StatusError
			t.err = err
			t.recordAudit(ctx, "failed")
			t.mu.Unlock()
			return err
		}
		if len(changes) == 0 {
			continue
		}
		r, err := t.manager.Open(s)
		if err != nil {
			t.status = StatusError
			t.err = err
			t.recordAudit(ctx, "failed")
			t.mu.Unlock()
			return err
		}
		branches = append(branches, branch{space: s, r: r, changes: changes})
	}

	// Validate every recorded History claim against the replica's current
	// state before committing anything: this is the consistency
	// guarantee from spec.md §4.4, checked here rather than relying on
	// the replica to notify chronicles of incoming changes.
	for s, c := range t.chronicles {
		r, err := t.manager.Open(s)
		if err != nil {
			t.status = StatusError
			t.err = err
			t.recordAudit(ctx, "failed")
			t.mu.Unlock()
			return err
		}
		for _, claim := range c.Claims() {
			fact, found, gerr := r.Get(ctx, replica.EntityKey{ID: claim.ID, Type: claim.Type})
			if gerr != nil {
				t.status = StatusError
				t.err = gerr
				t.recordAudit(ctx, "failed")
				t.mu.Unlock()
				return gerr
			}
			var current interface{}
			if found {
				v, ok := replica.ValueAtPath(fact, claim.Path)
				if ok {
					current = v
				}
			}
			if !jsonpath.DeepEqual(current, claim.Value) {
				err := &InconsistentError{Address: Address{Space: s, ID: claim.ID, Type: claim.Type, Path: claim.Path}}
				t.status = StatusError
				t.err = err
				t.recordAudit(ctx, "failed")
				t.mu.Unlock()
				return err
			}
		}
	}
	t.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range branches {
		b := b
		g.Go(func() error {
			changes := make([]replica.Change, len(b.changes))
			for i, c := range b.changes {
				changes[i] = replica.Change{
					Key:         replica.EntityKey{ID: c.ID, Type: c.Type},
					Value:       c.Value,
					ExpectedRev: c.ExpectedRev,
				}
			}
			_, err := b.r.Commit(gctx, changes)
			if err != nil {
				return err
			}
			if nerr := t.manager.NotifyCommit(gctx, b.space); nerr != nil {
				t.log.WithError(nerr).Warn("failed to publish commit notification")
			}
			return nil
		})
	}
	err := g.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.status = StatusError
		t.err = err
		t.recordAudit(ctx, "failed")
		return err
	}
	t.status = StatusDone
	t.recordAudit(ctx, "committed")
	return nil
}

// Status returns the current observable snapshot.
func (t *Transaction) Status() StatusReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	branches := make([]string, 0, len(t.chronicles))
	for s := range t.chronicles {
		branches = append(branches, s)
	}
	return StatusReport{
		Status:   t.status,
		Branches: branches,
		Activity: append([]ActivityEntry(nil), t.activity...),
		Error:    t.err,
	}
}
