package database

import (
	"bytes"
	"encoding/json"

	"github.com/ryanpbrewster/ezdb/sqlvalue"
)

// RowEntry is one column of a Row, carrying both the column name and its
// bridged value.
type RowEntry struct {
	Name  string
	Value sqlvalue.BridgedValue
}

// Row is one result row, held in column-name lexicographic order so that the
// JSON object it marshals to is stable across calls regardless of the SELECT
// list's declared order.
type Row []RowEntry

// MarshalJSON renders the row as a JSON object with its keys written in the
// order they're stored, i.e. lexicographically by column name.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, entry := range r {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
