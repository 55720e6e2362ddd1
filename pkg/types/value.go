package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ValueKind tags the three shapes a decoded argument can take.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindSequence
	KindRecord
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// LengthMarkerKey is the field every decoded record carries with its component count.
const LengthMarkerKey = "__length__"

// positionalNamePrefix names tuple components that were declared without a
// name. The ABI parser needs every component to have a name; decoders drop
// these again so the component only exists positionally.
const positionalNamePrefix = "__positional_"

// PositionalName is the placeholder name of the i-th anonymous component.
func PositionalName(i int) string {
	return fmt.Sprintf("%s%d", positionalNamePrefix, i)
}

// IsPositionalName reports whether name is a PositionalName placeholder.
func IsPositionalName(name string) bool {
	return strings.HasPrefix(name, positionalNamePrefix)
}

// Value is a node of a decoded argument tree: *Scalar, Sequence or *Record.
type Value interface {
	Kind() ValueKind
}

// Scalar holds a canonicalised leaf value. Numbers, addresses and byte strings
// are kept as strings so the tree serialises the same way on every run.
type Scalar struct {
	Value interface{}
}

func NewScalar(v interface{}) *Scalar {
	return &Scalar{Value: v}
}

func (s *Scalar) Kind() ValueKind { return KindScalar }

func (s *Scalar) String() string {
	if s == nil || s.Value == nil {
		return ""
	}
	if str, ok := s.Value.(string); ok {
		return str
	}
	return fmt.Sprint(s.Value)
}

func (s *Scalar) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(s)
}

// Sequence is an ordered list of values (ABI arrays and slices).
type Sequence []Value

func (s Sequence) Kind() ValueKind { return KindSequence }

func (s Sequence) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(s)
}

// Field is a single keyed entry of a Record. Artifact fields are the
// positional aliases and length marker produced by the decoder; they are
// not part of the semantic argument set.
type Field struct {
	Key      string
	Value    Value
	Artifact bool
}

// Record is an ordered set of keyed values (argument lists and ABI tuples).
type Record struct {
	Fields []Field
}

func NewRecord() *Record {
	return &Record{Fields: make([]Field, 0)}
}

func (r *Record) Kind() ValueKind { return KindRecord }

// Add appends a named field.
func (r *Record) Add(key string, v Value) *Record {
	r.Fields = append(r.Fields, Field{Key: key, Value: v})
	return r
}

// AddArtifact appends a positional alias or length marker.
func (r *Record) AddArtifact(key string, v Value) *Record {
	r.Fields = append(r.Fields, Field{Key: key, Value: v, Artifact: true})
	return r
}

// Get returns the first non-artifact field with the given key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	for _, f := range r.Fields {
		if !f.Artifact && f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether a non-artifact field with the given key exists.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys lists non-artifact keys in declaration order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if !f.Artifact {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Len is the number of non-artifact fields.
func (r *Record) Len() int {
	return len(r.Keys())
}

// Lookup resolves a dotted path ("transaction.data") through nested records.
func (r *Record) Lookup(path string) (Value, bool) {
	var current Value = r
	for _, part := range strings.Split(path, ".") {
		rec, ok := current.(*Record)
		if !ok || rec == nil {
			return nil, false
		}
		if current, ok = rec.Get(part); !ok {
			return nil, false
		}
	}
	return current, true
}

// StringField returns the string form of a scalar field, or "" if the field
// is missing or not a scalar.
func (r *Record) StringField(key string) string {
	v, ok := r.Get(key)
	if !ok {
		return ""
	}
	s, ok := v.(*Scalar)
	if !ok {
		return ""
	}
	return s.String()
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r)
}

// MarshalCanonical serialises a value tree as compact JSON. Record fields
// keep their order and HTML characters are not escaped, so the output is
// stable across runs.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case *Scalar:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		return writePrimitive(buf, t.Value)
	case Sequence:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Record:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writePrimitive(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Errorf("unsupported value type %T", v)
	}
	return nil
}

func writePrimitive(buf *bytes.Buffer, v interface{}) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
