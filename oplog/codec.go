package oplog

import (
	"github.com/cespare/xxhash"
	"github.com/learn-decentralized-systems/toytlv"
	"github.com/pkg/errors"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/rdx"
)

/*
Change record layout (ToyTLV, uppercase record types):

	C { A actor, Q seq, O startOp, P { V {A actor, seq}... }, G message, X op... }
	X { K action, B obj, [Y key], [E elem], [value], [D delta] }

The value record carries its RDX letter (F I R S T Z) as the record type.
*/

const (
	LitChange  = 'C'
	LitOp      = 'X'
	litActor   = 'A'
	litSeq     = 'Q'
	litStartOp = 'O'
	litDeps    = 'P'
	litMessage = 'G'
	litAction  = 'K'
	litObj     = 'B'
	litKey     = 'Y'
	litElem    = 'E'
	litDelta   = 'D'
)

func EncodeOp(op *Op) []byte {
	parts := [][]byte{
		toytlv.Record(litAction, []byte{byte(op.Action)}),
		toytlv.Record(litObj, op.Obj.TLV()),
	}
	if len(op.Key) > 0 {
		parts = append(parts, toytlv.Record(litKey, []byte(op.Key)))
	}
	if !op.Elem.IsZero() {
		parts = append(parts, toytlv.Record(litElem, op.Elem.TLV()))
	}
	if op.Value.Type != rdx.None {
		parts = append(parts, op.Value.TLV())
	}
	if op.Delta != 0 {
		parts = append(parts, toytlv.Record(litDelta, rdx.ZipInt64(op.Delta)))
	}
	return toytlv.Record(LitOp, parts...)
}

// EncodeChange produces a C record; the output depends on change
// content only.
func EncodeChange(ch *Change) []byte {
	parts := make([][]byte, 0, len(ch.Ops)+6)
	parts = append(parts,
		toytlv.Record(litActor, []byte(ch.Actor)),
		toytlv.Record(litSeq, rdx.ZipUint64(ch.Seq)),
		toytlv.Record(litStartOp, rdx.ZipUint64(ch.StartOp)),
		toytlv.Record(litDeps, ch.Deps.TLV()),
		toytlv.Record(litMessage, []byte(ch.Message)),
	)
	for i := range ch.Ops {
		parts = append(parts, EncodeOp(&ch.Ops[i]))
	}
	return toytlv.Record(LitChange, parts...)
}

var errBadField = errors.New("bad field")

func ChangeHash(ch *Change) uint64 {
	return xxhash.Sum64(EncodeChange(ch))
}

func malformed(err error, format string, args ...any) error {
	if err == nil {
		return errors.Wrapf(automerge_errors.ErrMalformedEncoding, format, args...)
	}
	return errors.Wrapf(automerge_errors.ErrMalformedEncoding, format+": "+err.Error(), args...)
}

func takeUint(lit byte, data []byte) (n uint64, rest []byte, err error) {
	body, rest, err := toytlv.TakeWary(lit, data)
	if err != nil {
		return 0, nil, err
	}
	if len(body) > 8 {
		return 0, nil, errBadField
	}
	return rdx.UnzipUint64(body), rest, nil
}

// DecodeChange parses one C record from untrusted data, returns the rest.
func DecodeChange(data []byte) (ch *Change, rest []byte, err error) {
	body, rest, err := toytlv.TakeWary(LitChange, data)
	if err != nil {
		return nil, nil, malformed(err, "change record")
	}
	ch = &Change{}
	var actor, msg, deps []byte
	if actor, body, err = toytlv.TakeWary(litActor, body); err != nil {
		return nil, nil, malformed(err, "change actor")
	}
	ch.Actor = rdx.ActorID(actor)
	if ch.Seq, body, err = takeUint(litSeq, body); err != nil {
		return nil, nil, malformed(err, "change %s seq", ch.Actor)
	}
	if ch.StartOp, body, err = takeUint(litStartOp, body); err != nil {
		return nil, nil, malformed(err, "change %s:%d start op", ch.Actor, ch.Seq)
	}
	if deps, body, err = toytlv.TakeWary(litDeps, body); err != nil {
		return nil, nil, malformed(err, "change %s:%d deps", ch.Actor, ch.Seq)
	}
	if ch.Deps, err = rdx.ClockFromTLV(deps); err != nil {
		return nil, nil, malformed(err, "change %s:%d deps", ch.Actor, ch.Seq)
	}
	if msg, body, err = toytlv.TakeWary(litMessage, body); err != nil {
		return nil, nil, malformed(err, "change %s:%d message", ch.Actor, ch.Seq)
	}
	ch.Message = string(msg)
	for len(body) > 0 {
		var rec []byte
		if rec, body, err = toytlv.TakeWary(LitOp, body); err != nil {
			return nil, nil, malformed(err, "change %s:%d op %d", ch.Actor, ch.Seq, len(ch.Ops))
		}
		var op Op
		if op, err = decodeOp(rec); err != nil {
			return nil, nil, malformed(err, "change %s:%d op %d", ch.Actor, ch.Seq, len(ch.Ops))
		}
		ch.Ops = append(ch.Ops, op)
	}
	if err = ch.Validate(); err != nil {
		return nil, nil, malformed(err, "change")
	}
	return ch, rest, nil
}

func decodeOp(body []byte) (op Op, err error) {
	var action, obj []byte
	if action, body, err = toytlv.TakeWary(litAction, body); err != nil {
		return
	}
	if len(action) != 1 {
		return op, errBadField
	}
	op.Action = Action(action[0])
	if obj, body, err = toytlv.TakeWary(litObj, body); err != nil {
		return
	}
	if op.Obj, err = rdx.OpIDFromTLV(obj); err != nil {
		return
	}
	for len(body) > 0 {
		var lit byte
		var rec []byte
		lit, rec, body, err = toytlv.TakeAnyWary(body)
		if err != nil {
			return
		}
		if rec == nil {
			return op, errBadField
		}
		switch lit {
		case litKey:
			op.Key = string(rec)
		case litElem:
			op.Elem, err = rdx.OpIDFromTLV(rec)
		case litDelta:
			if len(rec) > 8 {
				return op, errBadField
			}
			op.Delta = rdx.UnzipInt64(rec)
		default:
			op.Value, err = rdx.ValueFromTLV(lit, rec)
		}
		if err != nil {
			return
		}
	}
	return
}
