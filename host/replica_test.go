package host

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-bladt/automerge"
	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

func openMem(t *testing.T, fs vfs.FS, actor string) *Replica {
	r, err := Open("replica", Options{
		Options: pebble.Options{FS: fs},
		Actor:   rdx.ActorID(actor),
	})
	require.NoError(t, err)
	return r
}

func set(key string, value any) automerge.Mutator {
	return func(root *automerge.Map) (*automerge.Map, error) {
		root.Set(key, value)
		return root, nil
	}
}

func decode(t *testing.T, recs toyqueue.Records) (changes []*oplog.Change) {
	for _, rec := range recs {
		ch, rest, err := oplog.DecodeChange(rec)
		require.NoError(t, err)
		assert.Empty(t, rest)
		changes = append(changes, ch)
	}
	return
}

func TestReplica_Reopen(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()
	r := openMem(t, fs, "aaaa")
	_, err := r.Change(ctx, "one", set("x", 1))
	assert.NoError(t, err)
	_, err = r.Change(ctx, "two", set("y", []any{"a", "b"}))
	assert.NoError(t, err)
	saved := automerge.Save(r.Doc())
	assert.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), automerge_errors.ErrClosed)
	_, err = r.Change(ctx, "late", set("z", 1))
	assert.ErrorIs(t, err, automerge_errors.ErrClosed)

	r = openMem(t, fs, "")
	assert.Equal(t, rdx.ActorID("aaaa"), r.Actor())
	assert.Equal(t, int64(1), r.Doc().Get("x"))
	assert.Equal(t, saved, automerge.Save(r.Doc()))

	ch, err := r.GetChange("aaaa", 2)
	assert.NoError(t, err)
	assert.Equal(t, "two", ch.Message)
	_, err = r.GetChange("aaaa", 3)
	assert.ErrorIs(t, err, ErrNoChange)

	stored, err := r.ChangesSince(nil)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "one", stored[0].Message)
	assert.Equal(t, 2, r.cache.Len())
	stored, err = r.ChangesSince(rdx.Clock{"aaaa": 1})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Same(t, ch, stored[0])

	// nothing new, nothing committed
	copied, err := automerge.Load(saved, automerge.Options{})
	require.NoError(t, err)
	doc, err := r.Merge(ctx, copied)
	require.NoError(t, err)
	assert.Same(t, r.Doc(), doc)
	assert.NoError(t, r.Close())

	_, err = Open("replica", Options{Options: pebble.Options{FS: fs}, Actor: "bbbb"})
	assert.ErrorIs(t, err, automerge_errors.ErrBadActor)
}

func TestReplica_Hoses(t *testing.T) {
	ctx := context.Background()
	a := openMem(t, vfs.NewMem(), "aaaa")
	defer a.Close()
	b := openMem(t, vfs.NewMem(), "bbbb")
	defer b.Close()

	hose, err := a.AddHose("b", nil)
	require.NoError(t, err)
	echo, err := b.AddHose("a", nil)
	require.NoError(t, err)

	_, err = a.Change(ctx, "", set("k", "from a"))
	require.NoError(t, err)
	recs, err := hose.Feed()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	doc, err := b.Apply(ctx, decode(t, recs), "a")
	require.NoError(t, err)
	assert.Equal(t, "from a", doc.Get("k"))
	assert.True(t, automerge.Equals(a.Doc(), b.Doc()))
	_, err = echo.Feed()
	assert.Error(t, err, "changes are not echoed to their source")

	// a late subscriber gets the backlog first
	late, err := a.AddHose("late", a.Doc().Clock().Without("aaaa"))
	require.NoError(t, err)
	recs, err = late.Feed()
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	a.RemoveHose("b")
	_, err = a.Change(ctx, "", set("k2", 2))
	require.NoError(t, err)
	_, err = hose.Feed()
	assert.Error(t, err)
	recs, err = late.Feed()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReplica_ApplyRejected(t *testing.T) {
	ctx := context.Background()
	src, err := automerge.Init(automerge.Options{Actor: "cccc"})
	require.NoError(t, err)
	src, err = automerge.Change(src, "", set("x", 1))
	require.NoError(t, err)
	src, err = automerge.Change(src, "", set("x", 2))
	require.NoError(t, err)
	changes := automerge.GetChangesForActor(src, "cccc")

	r := openMem(t, vfs.NewMem(), "aaaa")
	defer r.Close()
	failures := testutil.ToFloat64(ApplyFailures.WithLabelValues("remote"))
	_, err = r.Apply(ctx, changes[1:], "")
	assert.ErrorIs(t, err, automerge_errors.ErrMissingDependency)
	assert.Equal(t, failures+1, testutil.ToFloat64(ApplyFailures.WithLabelValues("remote")))
	assert.Empty(t, r.Doc().Clock())

	committed := testutil.ToFloat64(ChangesCommitted.WithLabelValues("remote"))
	doc, err := r.Merge(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Get("x"))
	assert.Equal(t, committed+2, testutil.ToFloat64(ChangesCommitted.WithLabelValues("remote")))

	same, err := r.Merge(ctx, src)
	require.NoError(t, err)
	assert.Same(t, doc, same)
}

func TestReplica_Register(t *testing.T) {
	r := openMem(t, vfs.NewMem(), "aaaa")
	defer r.Close()
	_, err := r.Change(context.Background(), "", set("x", 1))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, r.Register(reg))
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["automerge_replica_changes_committed"])
	assert.True(t, names["automerge_pebble_wal_bytes_in_total"])
}

func TestReplica_ForeignKey(t *testing.T) {
	fs := vfs.NewMem()
	r := openMem(t, fs, "aaaa")
	_, err := r.Change(context.Background(), "one", set("x", 1))
	require.NoError(t, err)
	ch, err := r.GetChange("aaaa", 1)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	db, err := pebble.Open("replica", &pebble.Options{FS: fs})
	require.NoError(t, err)
	require.NoError(t, db.Set(ChangeKey("aaaa", 2), oplog.EncodeChange(ch), nil))
	require.NoError(t, db.Close())

	_, err = Open("replica", Options{Options: pebble.Options{FS: fs}})
	assert.ErrorIs(t, err, automerge_errors.ErrMalformedEncoding)
}
