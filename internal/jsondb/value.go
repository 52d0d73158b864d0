package jsondb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the runtime type of a Value.
type Kind uint8

// Kinds of Value. KindUndefined is the zero value and marks an absent value,
// as opposed to an explicit JSON null.
const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value. Integers and floating point numbers are kept apart.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	a    []Value
	o    *Document
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value holding items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, a: items}
}

// Object returns an object value wrapping d.
func Object(d *Document) Value {
	if d == nil {
		d = NewDocument()
	}
	return Value{kind: KindObject, o: d}
}

// Kind returns the runtime type of v.
func (v Value) Kind() Kind { return v.kind }

// IsDefined reports whether v holds a value, including null.
func (v Value) IsDefined() bool { return v.kind != KindUndefined }

// IsNumber reports whether v is an int or a float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// BoolValue returns the boolean held by v, false for other kinds.
func (v Value) BoolValue() bool { return v.b }

// StringValue returns the string held by v, "" for other kinds.
func (v Value) StringValue() string { return v.s }

// Items returns the elements of an array value, nil for other kinds.
func (v Value) Items() []Value { return v.a }

// Document returns the object held by v, nil for other kinds.
func (v Value) Document() *Document { return v.o }

// FloatValue returns the number held by v as a float64.
func (v Value) FloatValue() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Integer returns v as an int64 when it is an int or an integral float.
func (v Value) Integer() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Equal reports whether a and b hold the same value. Numbers compare by value
// across int and float.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.i == b.i
		}
		return a.FloatValue() == b.FloatValue()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.a) != len(b.a) {
			return false
		}
		for i := range a.a {
			if !Equal(a.a[i], b.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.o.Len() != b.o.Len() {
			return false
		}
		for k, av := range a.o.All() {
			bv, ok := b.o.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.a))
		for i := range v.a {
			items[i] = v.a[i].Clone()
		}
		return Value{kind: KindArray, a: items}
	case KindObject:
		return Value{kind: KindObject, o: v.o.Clone()}
	default:
		return v
	}
}

// MarshalJSON implements json.Marshaler. An undefined value encodes as null.
// Strings are written without HTML escaping so stored text round-trips
// byte for byte.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindUndefined, KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.Write(strconv.AppendBool(buf.AvailableBuffer(), v.b))
	case KindInt:
		buf.Write(strconv.AppendInt(buf.AvailableBuffer(), v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("unsupported float value %v", v.f)
		}
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		return encodeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.a {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		return v.o.encode(buf)
	default:
		return fmt.Errorf("unknown value kind %s", v.kind)
	}
	return nil
}

// encodeString writes s as a JSON string literal without escaping <, > and &.
func encodeString(buf *bytes.Buffer, s string) error {
	e := json.NewEncoder(buf)
	e.SetEscapeHTML(false)
	if err := e.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = Array(items...)
	case '{':
		d := NewDocument()
		if err := d.UnmarshalJSON(data); err != nil {
			return err
		}
		*v = Object(d)
	default:
		return v.unmarshalNumber(data)
	}
	return nil
}

func (v *Value) unmarshalNumber(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if !bytes.ContainsAny(data, ".eE") {
		if i, err := n.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*v = Float(f)
	return nil
}

// ParseValue decodes a JSON text into a Value.
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Document is a JSON object that keeps the insertion order of its fields.
type Document struct {
	m *orderedmap.OrderedMap[string, Value]
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{m: orderedmap.New[string, Value]()}
}

// ParseDocument decodes a JSON text that must be an object.
func ParseDocument(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrValidation)
	}
	d := NewDocument()
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return d.m.Len()
}

// Get returns the value of a field.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	return d.m.Get(key)
}

// Has reports whether the field exists.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set creates or replaces a field. New fields are appended at the end.
func (d *Document) Set(key string, v Value) {
	d.m.Set(key, v)
}

// Delete removes a field and reports whether it existed.
func (d *Document) Delete(key string) bool {
	_, ok := d.m.Delete(key)
	return ok
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Len())
	for k := range d.All() {
		keys = append(keys, k)
	}
	return keys
}

// All returns an iterator over the fields in order.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for p := d.m.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := NewDocument()
	for k, v := range d.All() {
		c.Set(k, v.Clone())
	}
	return c
}

// MarshalJSON implements json.Marshaler. Fields are written in order and
// strings are not HTML escaped.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	for k, v := range d.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := v.encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Existing fields are kept.
func (d *Document) UnmarshalJSON(data []byte) error {
	if d.m == nil {
		d.m = orderedmap.New[string, Value]()
	}
	return d.m.UnmarshalJSON(data)
}
