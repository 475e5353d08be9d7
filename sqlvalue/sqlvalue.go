// Package sqlvalue bridges the wire-level self-describing value model (null,
// bool, number, string) used by the HTTP surface and the SQL column type
// model understood by the embedded engine.
package sqlvalue

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind identifies which of BridgedValue's variants is populated.
type Kind int

const (
	Null Kind = iota
	Integer
	Float
	Text
	Bytes
)

// BridgedValue is the tagged union that every bound parameter and every
// scanned column value is represented as internally.
type BridgedValue struct {
	Kind    Kind
	Integer int64
	Float   float64
	Text    string
	Bytes   []byte
}

// Value implements driver.Valuer so a BridgedValue can be passed directly as
// a bind parameter to the underlying database/sql driver.
func (v BridgedValue) Value() (driver.Value, error) {
	switch v.Kind {
	case Null:
		return nil, nil
	case Integer:
		return v.Integer, nil
	case Float:
		return v.Float, nil
	case Text:
		return v.Text, nil
	case Bytes:
		return v.Bytes, nil
	default:
		return nil, errors.Errorf("unbridgeable value kind %d", v.Kind)
	}
}

// MarshalJSON renders a BridgedValue in its outbound wire shape.
func (v BridgedValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Null:
		return []byte("null"), nil
	case Integer:
		return json.Marshal(v.Integer)
	case Float:
		return json.Marshal(v.Float)
	case Text:
		return json.Marshal(v.Text)
	case Bytes:
		return json.Marshal(v.Bytes) // encoding/json base64-encodes []byte.
	default:
		return nil, errors.Errorf("unbridgeable value kind %d", v.Kind)
	}
}

// FromColumn converts a value scanned off the embedded engine (as handed back
// by database/sql, already typed by the column's native storage class) into a
// BridgedValue. Text columns whose bytes are not valid UTF-8 fall back to
// Bytes rather than producing invalid JSON.
func FromColumn(raw interface{}) (BridgedValue, error) {
	switch t := raw.(type) {
	case nil:
		return BridgedValue{Kind: Null}, nil
	case int64:
		return BridgedValue{Kind: Integer, Integer: t}, nil
	case float64:
		return BridgedValue{Kind: Float, Float: t}, nil
	case string:
		if !utf8.ValidString(t) {
			return BridgedValue{Kind: Bytes, Bytes: []byte(t)}, nil
		}
		return BridgedValue{Kind: Text, Text: t}, nil
	case []byte:
		if utf8.Valid(t) {
			return BridgedValue{Kind: Text, Text: string(t)}, nil
		}
		return BridgedValue{Kind: Bytes, Bytes: t}, nil
	case bool:
		// Some engines hand back driver-level bools for boolean-affinity columns.
		if t {
			return BridgedValue{Kind: Integer, Integer: 1}, nil
		}
		return BridgedValue{Kind: Integer, Integer: 0}, nil
	default:
		return BridgedValue{}, errors.Errorf("unsupported column value of type %T", raw)
	}
}

// FromWire converts a decoded JSON parameter value into a BridgedValue,
// preferring an exact integer representation over float when one exists.
func FromWire(raw interface{}) (BridgedValue, error) {
	switch t := raw.(type) {
	case nil:
		return BridgedValue{Kind: Null}, nil
	case bool:
		if t {
			return BridgedValue{Kind: Integer, Integer: 1}, nil
		}
		return BridgedValue{Kind: Integer, Integer: 0}, nil
	case float64:
		if i := int64(t); float64(i) == t && !math.IsInf(t, 0) {
			return BridgedValue{Kind: Integer, Integer: i}, nil
		}
		return BridgedValue{Kind: Float, Float: t}, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return BridgedValue{Kind: Integer, Integer: i}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return BridgedValue{}, errors.Wrap(err, "unsupported parameter shape")
		}
		return BridgedValue{Kind: Float, Float: f}, nil
	case string:
		if !utf8.ValidString(t) {
			return BridgedValue{}, errors.New("unsupported parameter shape")
		}
		return BridgedValue{Kind: Text, Text: t}, nil
	default:
		// []interface{} and map[string]interface{} (arrays, objects) land here.
		return BridgedValue{}, errors.New("unsupported parameter shape")
	}
}
