package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type SemanticType string

const (
	Categorical SemanticType = "categorical"
	Numeric     SemanticType = "numeric"
	Temporal    SemanticType = "temporal"
)

type Column struct {
	Name string       `json:"name"`
	Type SemanticType `json:"type"`
}

// CanonicalTable is the typed, rectangular form every chart is rendered from.
// Cells are float64 for numeric columns, UTC time.Time for temporal columns,
// string for categorical columns, and nil for null. A table is immutable after
// construction and may be shared between goroutines.
type CanonicalTable struct {
	columns []Column
	index   map[string]int
	rows    [][]any
}

// NewCanonicalTable validates and copies columns and rows.
func NewCanonicalTable(columns []Column, rows [][]any) (*CanonicalTable, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	t := &CanonicalTable{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]any, len(rows)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		switch c.Type {
		case Categorical, Numeric, Temporal:
		default:
			return nil, fmt.Errorf("column %q has unknown type %q", c.Name, c.Type)
		}
		t.columns[i] = c
		t.index[c.Name] = i
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(columns))
		}
		cp := make([]any, len(row))
		for i, v := range row {
			cell, err := checkCell(columns[i], v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r, err)
			}
			cp[i] = cell
		}
		t.rows[r] = cp
	}
	return t, nil
}

func checkCell(c Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case Numeric:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case Temporal:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC(), nil
		}
	case Categorical:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("column %q (%s) cannot hold %T", c.Name, c.Type, v)
}

func (t *CanonicalTable) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *CanonicalTable) NumColumns() int { return len(t.columns) }

func (t *CanonicalTable) NumRows() int { return len(t.rows) }

// Column looks a column up by name.
func (t *CanonicalTable) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// ColumnsOfType returns the columns of the given type in table order.
func (t *CanonicalTable) ColumnsOfType(st SemanticType) []Column {
	var out []Column
	for _, c := range t.columns {
		if c.Type == st {
			out = append(out, c)
		}
	}
	return out
}

// Row returns a copy of row r.
func (t *CanonicalTable) Row(r int) []any {
	out := make([]any, len(t.rows[r]))
	copy(out, t.rows[r])
	return out
}

// Value returns the cell at row r in the named column; nil when null or unknown.
func (t *CanonicalTable) Value(r int, name string) any {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.rows[r][i]
}

// Number returns a numeric cell; ok is false for null cells.
func (t *CanonicalTable) Number(r int, name string) (float64, bool) {
	f, ok := t.Value(r, name).(float64)
	return f, ok
}

// Distinct counts the distinct non-null values of a column.
func (t *CanonicalTable) Distinct(name string) int {
	i, ok := t.index[name]
	if !ok {
		return 0
	}
	seen := make(map[any]struct{})
	for _, row := range t.rows {
		v := row[i]
		if v == nil {
			continue
		}
		if ts, isTime := v.(time.Time); isTime {
			v = ts.UnixNano()
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

type tableJSON struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t *CanonicalTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Columns: t.columns, Rows: t.rows})
}

func (t *CanonicalTable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []Column            `json:"columns"`
		Rows    [][]json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rows := make([][]any, len(raw.Rows))
	for r, cells := range raw.Rows {
		if len(cells) != len(raw.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", r, len(cells), len(raw.Columns))
		}
		row := make([]any, len(cells))
		for i, cell := range cells {
			v, err := decodeCell(raw.Columns[i], cell)
			if err != nil {
				return fmt.Errorf("row %d: %w", r, err)
			}
			row[i] = v
		}
		rows[r] = row
	}
	decoded, err := NewCanonicalTable(raw.Columns, rows)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}

func decodeCell(c Column, cell json.RawMessage) (any, error) {
	if len(cell) == 0 || bytes.Equal(cell, []byte("null")) {
		return nil, nil
	}
	switch c.Type {
	case Numeric:
		var f float64
		if err := json.Unmarshal(cell, &f); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		return f, nil
	case Temporal:
		var ts time.Time
		if err := json.Unmarshal(cell, &ts); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		return ts.UTC(), nil
	default:
		var s string
		if err := json.Unmarshal(cell, &s); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		return s, nil
	}
}
