package objstore

import "slices"

// Resolve splits a slot into its winning entry and the losing concurrent
// ones. The result depends only on the set of entries.
func Resolve(entries []Entry) (winner Entry, conflicts []Entry, ok bool) {
	if len(entries) == 0 {
		return
	}
	sorted := entries
	if !slices.IsSortedFunc(entries, compareEntries) {
		sorted = slices.Clone(entries)
		slices.SortFunc(sorted, compareEntries)
	}
	return sorted[0], sorted[1:], true
}

// Winner is Resolve without the conflicts.
func Winner(entries []Entry) (Entry, bool) {
	w, _, ok := Resolve(entries)
	return w, ok
}
