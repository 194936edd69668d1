package automerge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistory(t *testing.T) {
	doc := edit(t, newDoc(t, "aaaa"), func(root *Map) {
		root.Set("step", 1)
	})
	doc, err := Change(doc, "second", func(root *Map) (*Map, error) {
		root.Set("step", 2)
		root.Set("extra", "e")
		return root, nil
	})
	require.NoError(t, err)
	doc = edit(t, doc, func(root *Map) {
		root.Delete("extra")
	})

	history, err := GetHistory(doc)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, map[string]any{"step": int64(1)}, Inspect(history[0].Snapshot))
	assert.Equal(t, map[string]any{"step": int64(2), "extra": "e"}, Inspect(history[1].Snapshot))
	assert.Equal(t, "second", history[1].Change.Message)
	assert.True(t, Equals(doc, history[2].Snapshot))
	assert.Equal(t, "aaaa:2", history[1].Snapshot.Clock().String())
}

func TestDocument_Dump(t *testing.T) {
	x := edit(t, newDoc(t, "xxxx"), func(root *Map) {
		root.Set("k", "from x")
		root.Set("l", []any{1})
	})
	y := edit(t, fork(t, x, "yyyy"), func(root *Map) {
		root.Set("k", "from y")
		root.List("l").Delete(0)
	})
	x = edit(t, x, func(root *Map) {
		root.Set("k", "again x")
	})
	doc := merged(t, x, y)

	var buf bytes.Buffer
	doc.Dump(&buf)
	assert.Equal(t,
		"_root.M:\tk\t\"from y\"@5@yyyy | \"again x\"@5@xxxx\n"+
			"_root.M:\tl\t{2@xxxx}@3@xxxx\n"+
			"2@xxxx.L:\t4@xxxx\t~\n"+
			"\n"+
			"xxxx  ->  2\n"+
			"yyyy  ->  1\n",
		buf.String())
}
