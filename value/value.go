// Package value defines the typed property values stored on graph nodes and
// the codec between application values and their raw stored representation.
//
// Engines persist values through Marshal/Unmarshal (msgpack); the query layer
// turns raw values back into plain Go values with Decode.
package value

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind identifies the type of a Value.
type Kind uint8

// Supported value kinds.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
)

// String returns the kind name as used in schema declarations and errors.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k <= KindBytes
}

// KindOf parses a kind name. It accepts the names produced by Kind.String.
func KindOf(name string) (Kind, error) {
	switch name {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "time":
		return KindTime, nil
	case "bytes":
		return KindBytes, nil
	default:
		return KindInvalid, fmt.Errorf("unknown value kind %q", name)
	}
}

// Value is an immutable typed property value. The zero Value is invalid and
// represents "no value"; engines never store invalid values.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bit  bool
	ts   time.Time
	raw  []byte
}

// String returns a Value of kind string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns a Value of kind int.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float returns a Value of kind float.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a Value of kind bool.
func Bool(b bool) Value { return Value{kind: KindBool, bit: b} }

// Time returns a Value of kind time. The value is stored in UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t.UTC()} }

// Bytes returns a Value of kind bytes. The input is copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// From converts a plain Go value into a Value. Integer types widen to int64,
// float32 widens to float64. A Value passes through unchanged.
func From(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Time(x), nil
	case []byte:
		return Bytes(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported property value type %T", v)
	}
}

// Kind returns the value's kind. KindInvalid means the zero Value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero (absent) Value.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// Decode returns the plain Go representation of the value: string, int64,
// float64, bool, time.Time or []byte. The zero Value decodes to nil.
func (v Value) Decode() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bit
	case KindTime:
		return v.ts
	case KindBytes:
		return append([]byte(nil), v.raw...)
	default:
		return nil
	}
}

// AsString returns the string payload, reporting whether the kind matched.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the int payload, reporting whether the kind matched.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

// AsFloat returns the float payload, reporting whether the kind matched.
func (v Value) AsFloat() (float64, bool) { return v.flt, v.kind == KindFloat }

// AsBool returns the bool payload, reporting whether the kind matched.
func (v Value) AsBool() (bool, bool) { return v.bit, v.kind == KindBool }

// AsTime returns the time payload, reporting whether the kind matched.
func (v Value) AsTime() (time.Time, bool) { return v.ts, v.kind == KindTime }

// AsBytes returns a copy of the bytes payload, reporting whether the kind matched.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), v.raw...), true
}

// String implements fmt.Stringer for logging and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindFloat:
		return fmt.Sprintf("%g", v.flt)
	case KindBool:
		return fmt.Sprintf("%t", v.bit)
	case KindTime:
		return v.ts.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	default:
		return "<invalid>"
	}
}

// EncodeMsgpack implements msgpack.CustomEncoder. Values serialize as a
// two-element array: [kind, payload].
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}

	if err := enc.EncodeUint8(uint8(v.kind)); err != nil {
		return err
	}

	switch v.kind {
	case KindString:
		return enc.EncodeString(v.str)
	case KindInt:
		return enc.EncodeInt(v.num)
	case KindFloat:
		return enc.EncodeFloat64(v.flt)
	case KindBool:
		return enc.EncodeBool(v.bit)
	case KindTime:
		return enc.EncodeInt(v.ts.UnixNano())
	case KindBytes:
		return enc.EncodeBytes(v.raw)
	default:
		return enc.EncodeNil()
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}

	if n != 2 {
		return fmt.Errorf("decoding value: expected 2 elements, got %d", n)
	}

	k, err := dec.DecodeUint8()
	if err != nil {
		return err
	}

	v.kind = Kind(k)

	switch v.kind {
	case KindString:
		v.str, err = dec.DecodeString()
	case KindInt:
		v.num, err = dec.DecodeInt64()
	case KindFloat:
		v.flt, err = dec.DecodeFloat64()
	case KindBool:
		v.bit, err = dec.DecodeBool()
	case KindTime:
		var ns int64
		ns, err = dec.DecodeInt64()
		v.ts = time.Unix(0, ns).UTC()
	case KindBytes:
		v.raw, err = dec.DecodeBytes()
	default:
		err = dec.DecodeNil()
	}

	return err
}

// Marshal serializes a value to its raw stored representation.
func Marshal(v Value) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling value: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a raw stored representation back into a Value.
func Unmarshal(data []byte) (Value, error) {
	var v Value
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("unmarshalling value: %w", err)
	}
	return v, nil
}
