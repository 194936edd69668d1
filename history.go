package automerge

import (
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/oplog"
)

// HistoryEntry pairs a change with the document state right after it.
type HistoryEntry struct {
	Change   *oplog.Change
	Snapshot *Document
}

// GetHistory replays the changes of doc one by one, in canonical order.
func GetHistory(doc *Document) ([]HistoryEntry, error) {
	changes := doc.log.Changes()
	ret := make([]HistoryEntry, 0, len(changes))
	log := oplog.NewLog()
	store := objstore.NewStore()
	for _, ch := range changes {
		log = log.Clone()
		store = store.Clone()
		if err := replay(log, store, ch); err != nil {
			return nil, err
		}
		ret = append(ret, HistoryEntry{Change: ch, Snapshot: doc.derive(log, store)})
	}
	return ret, nil
}
