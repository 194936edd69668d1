package automerge

import (
	"fmt"
	"io"
	"strings"

	"github.com/jake-bladt/automerge/objstore"
)

func EntriesString(entries []objstore.Entry) string {
	if len(entries) == 0 {
		return "~"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Value.String()+"@"+e.ID.String())
	}
	return strings.Join(parts, " | ")
}

// Dump prints every object and the clock, for debugging.
func (doc *Document) Dump(writer io.Writer) {
	doc.DumpObjects(writer)
	fmt.Fprintln(writer, "")
	doc.DumpClock(writer)
}

// DumpObjects prints one line per slot, the winner first and tombstones
// as ~.
func (doc *Document) DumpObjects(writer io.Writer) {
	for _, id := range doc.store.ObjectIDs() {
		obj := doc.store.Object(id)
		if obj.Kind == objstore.KindMap {
			for _, key := range obj.Keys() {
				fmt.Fprintf(writer, "%s.%c:\t%s\t%s\n", id, obj.Kind, key, EntriesString(obj.Field(key)))
			}
			continue
		}
		for _, el := range obj.Elements() {
			fmt.Fprintf(writer, "%s.%c:\t%s\t%s\n", id, obj.Kind, el.ID, EntriesString(el.Entries))
		}
	}
}

func (doc *Document) DumpClock(writer io.Writer) {
	for _, actor := range doc.log.Clock().Actors() {
		fmt.Fprintln(writer, actor, " -> ", doc.log.Clock().Get(actor))
	}
}
