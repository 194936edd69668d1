// Package host keeps a document replica on disk. Every change is stored
// in pebble under its (actor, seq) key; on open the log is replayed.
// Local edits and remote changes are serialized; readers take the
// current document handle without locking.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/jake-bladt/automerge"
	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
	"github.com/jake-bladt/automerge/utils"
)

type Options struct {
	pebble.Options

	// Actor of a new replica; an existing one keeps its stored actor.
	Actor          rdx.ActorID
	Logger         utils.Logger
	HoseQueueLimit int
	CacheSize      int
	WriteSync      bool
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn).Named("host")
	}
	if o.HoseQueueLimit == 0 {
		o.HoseQueueLimit = 1 << 10
	}
	if o.CacheSize == 0 {
		o.CacheSize = 1 << 10
	}
}

var ErrNoChange = errors.New("host: no such change")

type Replica struct {
	db        *pebble.DB
	dir       string
	opts      Options
	log       utils.Logger
	wopts     pebble.WriteOptions
	doc       atomic.Pointer[automerge.Document]
	lock      sync.Mutex
	closed    atomic.Bool
	hoses     *xsync.MapOf[string, toyqueue.DrainCloser]
	cache     *lru.Cache[oplog.ChangeKey, *oplog.Change]
	collector *PebbleCollector
}

// Open opens or creates the replica stored in dirname.
func Open(dirname string, opts Options) (*Replica, error) {
	opts.SetDefaults()
	db, err := pebble.Open(dirname, &opts.Options)
	if err != nil {
		return nil, err
	}
	r := &Replica{
		db:        db,
		dir:       dirname,
		opts:      opts,
		log:       opts.Logger,
		wopts:     pebble.WriteOptions{Sync: opts.WriteSync},
		hoses:     xsync.NewMapOf[string, toyqueue.DrainCloser](),
		collector: NewPebbleCollector(db),
	}
	if r.cache, err = lru.New[oplog.ChangeKey, *oplog.Change](opts.CacheSize); err == nil {
		err = r.load()
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Replica) load() error {
	actor, err := r.loadActor()
	if err != nil {
		return err
	}
	doc, err := automerge.Init(automerge.Options{Actor: actor, Logger: r.log})
	if err != nil {
		return err
	}
	fro, til := ChangeKeyRange()
	it, err := r.db.NewIter(&pebble.IterOptions{LowerBound: fro, UpperBound: til})
	if err != nil {
		return err
	}
	var changes []*oplog.Change
	for it.First(); it.Valid(); it.Next() {
		actor, seq, ok := ParseChangeKey(it.Key())
		ch, _, err := oplog.DecodeChange(it.Value())
		if err == nil && (!ok || ch.Actor != actor || ch.Seq != seq) {
			err = fmt.Errorf("%w: stored under a foreign key", automerge_errors.ErrMalformedEncoding)
		}
		if err != nil {
			_ = it.Close()
			return fmt.Errorf("%q: %w", it.Key(), err)
		}
		changes = append(changes, ch)
	}
	if err = it.Close(); err != nil {
		return err
	}
	if doc, err = automerge.ApplyChanges(doc, changes); err != nil {
		return err
	}
	r.doc.Store(doc)
	r.log.Info("replica open", "dir", r.dir, "actor", actor, "changes", doc.Clock().Total())
	return nil
}

func (r *Replica) loadActor() (rdx.ActorID, error) {
	val, closer, err := r.db.Get(ActorKey)
	if err == nil {
		actor := rdx.ActorID(val)
		_ = closer.Close()
		if r.opts.Actor != "" && r.opts.Actor != actor {
			return "", fmt.Errorf("%w: replica belongs to %s", automerge_errors.ErrBadActor, actor)
		}
		return actor, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return "", err
	}
	actor := r.opts.Actor
	if actor == "" {
		actor = rdx.NewActorID()
	}
	if !actor.Valid() {
		return "", fmt.Errorf("%w: %q", automerge_errors.ErrBadActor, actor)
	}
	return actor, r.db.Set(ActorKey, []byte(actor), &r.wopts)
}

func (r *Replica) Close() error {
	if r.closed.Swap(true) {
		return automerge_errors.ErrClosed
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.hoses.Range(func(name string, hose toyqueue.DrainCloser) bool {
		_ = hose.Close()
		r.hoses.Delete(name)
		return true
	})
	return r.db.Close()
}

// Doc is the latest committed document.
func (r *Replica) Doc() *automerge.Document {
	return r.doc.Load()
}

func (r *Replica) Actor() rdx.ActorID {
	return r.Doc().ActorID()
}

func (r *Replica) Dir() string {
	return r.dir
}

// Change records a local edit, stores it and sends it to the hoses.
func (r *Replica) Change(ctx context.Context, message string, fn automerge.Mutator) (*automerge.Document, error) {
	return r.update(ctx, "local", "", func(doc *automerge.Document) (*automerge.Document, error) {
		return automerge.Change(doc, message, fn)
	})
}

// Apply merges remote changes. The hose named from, if any, does not
// get them echoed back.
func (r *Replica) Apply(ctx context.Context, changes []*oplog.Change, from string) (*automerge.Document, error) {
	return r.update(ctx, "remote", from, func(doc *automerge.Document) (*automerge.Document, error) {
		return automerge.ApplyChanges(doc, changes)
	})
}

// Merge pulls in everything other has.
func (r *Replica) Merge(ctx context.Context, other *automerge.Document) (*automerge.Document, error) {
	return r.update(ctx, "remote", "", func(doc *automerge.Document) (*automerge.Document, error) {
		return automerge.Merge(doc, other)
	})
}

func (r *Replica) update(ctx context.Context, origin, from string, fn func(*automerge.Document) (*automerge.Document, error)) (*automerge.Document, error) {
	ctx = utils.WithDefaultArgs(ctx, "origin", origin)
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed.Load() {
		return nil, automerge_errors.ErrClosed
	}
	start := time.Now()
	doc := r.Doc()
	next, err := fn(doc)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		ApplyFailures.WithLabelValues(origin).Inc()
		r.log.WarnCtx(ctx, "update rejected", "err", err)
		return nil, err
	}
	if next == doc || next.Clock().Equal(doc.Clock()) {
		return doc, nil
	}
	changes, err := automerge.GetChangesSince(next, doc.Clock())
	if err != nil {
		return nil, err
	}
	if err = r.commit(changes); err != nil {
		ApplyFailures.WithLabelValues(origin).Inc()
		r.log.ErrorCtx(ctx, "commit failed", "err", err)
		return nil, err
	}
	r.doc.Store(next)
	ChangesCommitted.WithLabelValues(origin).Add(float64(len(changes)))
	CommitDuration.WithLabelValues(origin).Observe(float64(time.Since(start).Milliseconds()))
	r.log.DebugCtx(ctx, "changes committed", "count", len(changes), "clock", next.Clock().String())
	r.broadcast(encode(changes), from)
	return next, nil
}

func (r *Replica) commit(changes []*oplog.Change) error {
	batch := r.db.NewBatch()
	defer batch.Close()
	for _, ch := range changes {
		if err := batch.Set(ChangeKey(ch.Actor, ch.Seq), oplog.EncodeChange(ch), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(&r.wopts); err != nil {
		return err
	}
	for _, ch := range changes {
		r.cache.Add(ch.Key(), ch)
	}
	return nil
}

func encode(changes []*oplog.Change) toyqueue.Records {
	recs := make(toyqueue.Records, 0, len(changes))
	for _, ch := range changes {
		recs = append(recs, oplog.EncodeChange(ch))
	}
	return recs
}

// GetChange reads one stored change.
func (r *Replica) GetChange(actor rdx.ActorID, seq uint64) (*oplog.Change, error) {
	key := oplog.ChangeKey{Actor: actor, Seq: seq}
	if ch, ok := r.cache.Get(key); ok {
		return ch, nil
	}
	val, closer, err := r.db.Get(ChangeKey(actor, seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoChange, key)
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()
	ch, _, err := oplog.DecodeChange(val)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, ch)
	return ch, nil
}

// ChangesSince reads the stored changes not covered by have, in an
// order ApplyChanges accepts.
func (r *Replica) ChangesSince(have rdx.Clock) ([]*oplog.Change, error) {
	clock := r.Doc().Clock()
	var changes []*oplog.Change
	for _, actor := range clock.Actors() {
		for seq := have.Get(actor) + 1; seq <= clock.Get(actor); seq++ {
			ch, err := r.GetChange(actor, seq)
			if err != nil {
				return nil, err
			}
			changes = append(changes, ch)
		}
	}
	return oplog.Order(changes, have)
}

// AddHose subscribes name to committed changes, one encoded change per
// record, starting with those not covered by since. A hose that falls
// behind by more than HoseQueueLimit records is dropped.
func (r *Replica) AddHose(name string, since rdx.Clock) (toyqueue.FeedCloser, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed.Load() {
		return nil, automerge_errors.ErrClosed
	}
	backlog, err := r.ChangesSince(since)
	if err != nil {
		return nil, err
	}
	queue := &toyqueue.RecordQueue{Limit: max(r.opts.HoseQueueLimit, len(backlog))}
	if err = queue.Drain(encode(backlog)); err != nil {
		return nil, err
	}
	if old, ok := r.hoses.LoadAndStore(name, queue); ok {
		r.log.Info("replacing hose", "name", name)
		_ = old.Close()
	}
	return queue, nil
}

func (r *Replica) RemoveHose(name string) {
	if hose, ok := r.hoses.LoadAndDelete(name); ok {
		_ = hose.Close()
	}
}

func (r *Replica) broadcast(records toyqueue.Records, except string) {
	r.hoses.Range(func(name string, hose toyqueue.DrainCloser) bool {
		if name == except {
			return true
		}
		if err := hose.Drain(records); err != nil {
			r.log.Warn("dropping hose", "name", name, "err", err)
			HosesDropped.Inc()
			r.hoses.Delete(name)
			_ = hose.Close()
		}
		return true
	})
}
