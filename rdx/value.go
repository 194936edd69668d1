package rdx

import (
	"errors"
	"strconv"

	"github.com/learn-decentralized-systems/toytlv"
)

// Scalar types, by their RDX letters.
const (
	None      = byte(0)
	Float     = byte('F')
	Integer   = byte('I')
	Reference = byte('R')
	String    = byte('S')
	Term      = byte('T')
	ZCounter  = byte('Z')
)

const (
	TermNull  = "null"
	TermTrue  = "true"
	TermFalse = "false"
)

// Value is a tagged scalar; a Reference points at a child map or list
// object by the OpID that created it.
type Value struct {
	Type  byte
	Str   string
	Int   int64
	Float float64
	Ref   OpID
}

var ErrBadValue = errors.New("rdx: bad value")

func Str(s string) Value    { return Value{Type: String, Str: s} }
func Int(i int64) Value     { return Value{Type: Integer, Int: i} }
func Flt(f float64) Value   { return Value{Type: Float, Float: f} }
func Counter(i int64) Value { return Value{Type: ZCounter, Int: i} }
func Ref(obj OpID) Value    { return Value{Type: Reference, Ref: obj} }
func Null() Value           { return Value{Type: Term, Str: TermNull} }
func Bool(b bool) Value {
	if b {
		return Value{Type: Term, Str: TermTrue}
	}
	return Value{Type: Term, Str: TermFalse}
}

func (v Value) IsRef() bool {
	return v.Type == Reference
}

func (v Value) IsCounter() bool {
	return v.Type == ZCounter
}

// Native converts a scalar into a plain Go value; counters come out as
// int64, references as their OpID.
func (v Value) Native() any {
	switch v.Type {
	case String:
		return v.Str
	case Integer, ZCounter:
		return v.Int
	case Float:
		return v.Float
	case Term:
		switch v.Str {
		case TermTrue:
			return true
		case TermFalse:
			return false
		}
		return nil
	case Reference:
		return v.Ref
	}
	return nil
}

// produce a text form (for dumps mostly)
func (v Value) String() string {
	switch v.Type {
	case String:
		return strconv.Quote(v.Str)
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case ZCounter:
		return "#" + strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case Term:
		return v.Str
	case Reference:
		return "{" + v.Ref.String() + "}"
	}
	return "?"
}

// TLV record of the value, its RDX letter as the record type.
func (v Value) TLV() []byte {
	switch v.Type {
	case String, Term:
		return toytlv.Record(v.Type, []byte(v.Str))
	case Integer, ZCounter:
		return toytlv.Record(v.Type, ZipInt64(v.Int))
	case Float:
		return toytlv.Record(v.Type, ZipFloat64(v.Float))
	case Reference:
		return toytlv.Record(v.Type, v.Ref.TLV())
	}
	return nil
}

// ValueFromTLV parses a record produced by Value.TLV
func ValueFromTLV(lit byte, body []byte) (v Value, err error) {
	v.Type = lit
	switch lit {
	case String:
		v.Str = string(body)
	case Term:
		v.Str = string(body)
		if v.Str != TermNull && v.Str != TermTrue && v.Str != TermFalse {
			return Value{}, ErrBadValue
		}
	case Integer, ZCounter:
		if len(body) > 8 {
			return Value{}, ErrBadValue
		}
		v.Int = UnzipInt64(body)
	case Float:
		if len(body) > 8 {
			return Value{}, ErrBadValue
		}
		v.Float = UnzipFloat64(body)
	case Reference:
		v.Ref, err = OpIDFromTLV(body)
		if err != nil || v.Ref.IsZero() {
			return Value{}, ErrBadValue
		}
	default:
		return Value{}, ErrBadValue
	}
	return
}
