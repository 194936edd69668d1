package automerge

import (
	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

// Mutator edits the document through the root proxy and must return that
// same proxy.
type Mutator func(root *Map) (*Map, error)

// recorder turns proxy calls into ops and applies each op to a private
// store generation at once, so later reads in the block see it.
type recorder struct {
	store *objstore.Store
	clock rdx.Clock
	ch    *oplog.Change
	err   error
	done  bool
}

func newRecorder(doc *Document, message string) *recorder {
	actor := doc.ActorID()
	ch := &oplog.Change{
		Actor:   actor,
		Seq:     doc.log.Clock().Get(actor) + 1,
		StartOp: doc.log.MaxOp() + 1,
		Deps:    doc.log.Clock().Without(actor),
		Message: message,
	}
	clock := doc.log.Clock()
	clock.Set(actor, ch.Seq)
	return &recorder{store: doc.store.Clone(), clock: clock, ch: ch}
}

func (r *recorder) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// ok reports whether more ops may be recorded.
func (r *recorder) ok() bool {
	if r.done {
		r.fail(automerge_errors.ErrProxyExpired)
		return false
	}
	return r.err == nil
}

func (r *recorder) add(op oplog.Op) (id rdx.OpID, ok bool) {
	if !r.ok() {
		return
	}
	id = r.ch.OpID(len(r.ch.Ops))
	if err := r.store.Apply(op, id, r.ch.Seq, r.clock); err != nil {
		r.fail(err)
		return rdx.ID0, false
	}
	r.ch.Ops = append(r.ch.Ops, op)
	return id, true
}

// Change runs fn against a mutable view of doc and returns a new handle
// holding the recorded change. doc itself is never modified. A block
// that records nothing returns doc.
func Change(doc *Document, message string, fn Mutator) (*Document, error) {
	r := newRecorder(doc, message)
	root := &Map{r: r, id: rdx.ID0}
	res, err := fn(root)
	r.done = true
	if err != nil {
		return nil, err
	}
	if res != root {
		return nil, automerge_errors.ErrInvalidChangeResult
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.ch.Ops) == 0 {
		return doc, nil
	}
	return r.commit(doc)
}

// EmptyChange records a change without ops, e.g. to acknowledge the
// changes seen so far.
func EmptyChange(doc *Document, message string) (*Document, error) {
	r := newRecorder(doc, message)
	r.done = true
	return r.commit(doc)
}

func (r *recorder) commit(doc *Document) (*Document, error) {
	if err := r.ch.Validate(); err != nil {
		return nil, err
	}
	log := doc.log.Clone()
	if err := log.Append(r.ch); err != nil {
		return nil, err
	}
	doc.opts.Logger.Debug("change recorded",
		"change", r.ch.Key().String(), "ops", len(r.ch.Ops))
	return doc.derive(log, r.store), nil
}
