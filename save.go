package automerge

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/learn-decentralized-systems/toytlv"
	"github.com/pkg/errors"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

const (
	litHeader   = 'D'
	litChecksum = 'K'

	formatVersion = 1
)

// Save serializes the change history. The output depends only on the
// set of changes, so converged replicas produce identical bytes.
func Save(doc *Document) []byte {
	data := toytlv.Record(litHeader, rdx.ZipUint64(formatVersion))
	for _, ch := range doc.log.Changes() {
		data = append(data, oplog.EncodeChange(ch)...)
	}
	return appendChecksum(data)
}

func appendChecksum(data []byte) []byte {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(data))
	return append(data, toytlv.Record(litChecksum, sum[:])...)
}

func corrupt(format string, args ...any) error {
	return errors.Wrapf(automerge_errors.ErrMalformedEncoding, format, args...)
}

// Load restores a saved document; opts names the actor for further
// edits. Damaged input fails with ErrMalformedEncoding.
func Load(data []byte, opts Options) (*Document, error) {
	changes, err := decodeSaved(data)
	if err != nil {
		return nil, err
	}
	doc, err := Init(opts)
	if err != nil {
		return nil, err
	}
	loaded, err := ApplyChanges(doc, changes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", automerge_errors.ErrMalformedEncoding, err)
	}
	return loaded, nil
}

func decodeSaved(data []byte) (changes []*oplog.Change, err error) {
	lit, body, rest, err := toytlv.TakeAnyWary(data)
	if err != nil || lit != litHeader || body == nil {
		return nil, corrupt("no header")
	}
	if v := rdx.UnzipUint64(body); len(body) > 8 || v != formatVersion {
		return nil, corrupt("format version %d", v)
	}
	for {
		var next []byte
		lit, body, next, err = toytlv.TakeAnyWary(rest)
		if err != nil || (body == nil && lit != litChecksum) {
			return nil, corrupt("record at %d", len(data)-len(rest))
		}
		switch lit {
		case oplog.LitChange:
			var ch *oplog.Change
			if ch, rest, err = oplog.DecodeChange(rest); err != nil {
				return nil, err
			}
			changes = append(changes, ch)
		case litChecksum:
			signed := data[:len(data)-len(rest)]
			if len(next) != 0 || len(body) != 8 ||
				binary.BigEndian.Uint64(body) != xxhash.Sum64(signed) {
				return nil, corrupt("checksum mismatch")
			}
			return changes, nil
		default:
			return nil, corrupt("unexpected record %c", lit)
		}
	}
}
