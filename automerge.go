// Package automerge is a replicated JSON-like document store. Replicas
// edit their copies independently, exchange changes in any order and
// converge to the same state; concurrent writes to one field are kept
// as conflicts next to the deterministic winner.
package automerge

import (
	"fmt"
	"log/slog"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
	"github.com/jake-bladt/automerge/utils"
)

type Options struct {
	// Actor that signs local changes; generated if empty.
	Actor  rdx.ActorID
	Logger utils.Logger
}

func (o *Options) SetDefaults() {
	if o.Actor == "" {
		o.Actor = rdx.NewActorID()
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
}

// Document is an immutable handle on one state of a document. Every
// edit or merge returns a new handle and leaves the old one valid.
type Document struct {
	log   *oplog.Log
	store *objstore.Store
	opts  Options
}

// Init creates an empty document.
func Init(opts Options) (*Document, error) {
	opts.SetDefaults()
	if !opts.Actor.Valid() {
		return nil, fmt.Errorf("%w: %q", automerge_errors.ErrBadActor, opts.Actor)
	}
	return &Document{
		log:   oplog.NewLog(),
		store: objstore.NewStore(),
		opts:  opts,
	}, nil
}

func (doc *Document) derive(log *oplog.Log, store *objstore.Store) *Document {
	return &Document{log: log, store: store, opts: doc.opts}
}

func (doc *Document) ActorID() rdx.ActorID {
	return doc.opts.Actor
}

// WithActor returns a handle on the same state that records changes as
// another actor.
func (doc *Document) WithActor(actor rdx.ActorID) (*Document, error) {
	if !actor.Valid() {
		return nil, fmt.Errorf("%w: %q", automerge_errors.ErrBadActor, actor)
	}
	opts := doc.opts
	opts.Actor = actor
	return &Document{log: doc.log, store: doc.store, opts: opts}, nil
}

// Clock is the version vector of the changes this document contains.
func (doc *Document) Clock() rdx.Clock {
	return doc.log.Clock()
}

func (doc *Document) MaxOp() uint64 {
	return doc.log.MaxOp()
}

func (doc *Document) Root() *MapValue {
	return &MapValue{store: doc.store, id: rdx.ID0}
}

// Get reads a field of the root map.
func (doc *Document) Get(key string) any {
	return doc.Root().Get(key)
}
