package automerge

import (
	"fmt"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

// ApplyChanges merges changes, in any order and possibly with repeats
// or already known ones, into a new handle. Every dependency must be
// either in doc or among changes, else nothing is applied and the
// returned error wraps ErrMissingDependency.
func ApplyChanges(doc *Document, changes []*oplog.Change) (*Document, error) {
	fresh := make([]*oplog.Change, 0, len(changes))
	batch := make(map[oplog.ChangeKey]uint64, len(changes))
	for _, ch := range changes {
		if err := ch.Validate(); err != nil {
			return nil, err
		}
		hash := oplog.ChangeHash(ch)
		if have, ok := doc.log.Hash(ch.Actor, ch.Seq); ok {
			if have != hash {
				return nil, fmt.Errorf("%w: %s", automerge_errors.ErrForkedActor, ch.Key())
			}
			continue
		}
		if seen, ok := batch[ch.Key()]; ok {
			if seen != hash {
				return nil, fmt.Errorf("%w: %s", automerge_errors.ErrForkedActor, ch.Key())
			}
			continue
		}
		batch[ch.Key()] = hash
		fresh = append(fresh, ch)
	}
	if len(fresh) == 0 {
		return doc, nil
	}
	ordered, err := oplog.Order(fresh, doc.log.Clock())
	if err != nil {
		doc.opts.Logger.Warn("changes rejected", "count", len(fresh), "err", err)
		return nil, err
	}
	log := doc.log.Clone()
	store := doc.store.Clone()
	for _, ch := range ordered {
		if err = replay(log, store, ch); err != nil {
			return nil, err
		}
	}
	doc.opts.Logger.Debug("changes applied", "count", len(ordered), "clock", log.Clock().String())
	return doc.derive(log, store), nil
}

// replay appends ch to log and applies its ops to store.
func replay(log *oplog.Log, store *objstore.Store, ch *oplog.Change) error {
	if err := log.Append(ch); err != nil {
		return err
	}
	clock := log.ClockOf(ch.Actor, ch.Seq)
	for i, op := range ch.Ops {
		if err := store.Apply(op, ch.OpID(i), ch.Seq, clock); err != nil {
			return fmt.Errorf("change %s op %d: %w", ch.Key(), i, err)
		}
	}
	return nil
}

// Merge brings into a everything b has and a has not. The result records
// further changes as a's actor.
func Merge(a, b *Document) (*Document, error) {
	if a.log == b.log {
		return a, nil
	}
	if err := forked(a, b); err != nil {
		return nil, err
	}
	if a.Clock().Covers(b.Clock()) {
		return a, nil
	}
	changes, err := b.log.ChangesSince(a.Clock())
	if err != nil {
		return nil, err
	}
	return ApplyChanges(a, changes)
}

// forked finds an (actor, seq) both documents hold with different content.
func forked(a, b *Document) error {
	theirs := b.log.Clock()
	for actor, seq := range a.log.Clock() {
		common := min(seq, theirs.Get(actor))
		for s := uint64(1); s <= common; s++ {
			ha, _ := a.log.Hash(actor, s)
			hb, _ := b.log.Hash(actor, s)
			if ha != hb {
				return fmt.Errorf("%w: %s:%d", automerge_errors.ErrForkedActor, actor, s)
			}
		}
	}
	return nil
}

// GetChanges returns the changes of newer that older lacks, in an order
// ApplyChanges accepts as is.
func GetChanges(older, newer *Document) ([]*oplog.Change, error) {
	return newer.log.ChangesSince(older.Clock())
}

// GetChangesSince returns the changes of doc not covered by have.
func GetChangesSince(doc *Document, have rdx.Clock) ([]*oplog.Change, error) {
	return doc.log.ChangesSince(have)
}

// GetChangesForActor returns every change made by actor, by seq.
func GetChangesForActor(doc *Document, actor rdx.ActorID) []*oplog.Change {
	return doc.log.ForActor(actor)
}

// GetMissingDeps tells, per actor, up to which seq changes must be
// fetched before changes can be applied to doc.
func GetMissingDeps(doc *Document, changes []*oplog.Change) rdx.Clock {
	return oplog.Missing(changes, doc.Clock())
}
