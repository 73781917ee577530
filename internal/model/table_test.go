package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCanonicalTableValidates(t *testing.T) {
	cols := []Column{{Name: "level", Type: Categorical}, {Name: "count", Type: Numeric}}

	_, err := NewCanonicalTable(cols, [][]any{{"ERROR"}})
	assert.Error(t, err, "short row")

	_, err = NewCanonicalTable(cols, [][]any{{"ERROR", "3"}})
	assert.Error(t, err, "string in numeric column")

	_, err = NewCanonicalTable([]Column{{Name: "a", Type: Numeric}, {Name: "a", Type: Numeric}}, nil)
	assert.Error(t, err, "duplicate column")

	table, err := NewCanonicalTable(cols, [][]any{{"ERROR", 3.0}, {nil, nil}})
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 1, table.Distinct("level"))
}

func TestCanonicalTableIsolatedFromCallerSlices(t *testing.T) {
	rows := [][]any{{"ERROR", 3.0}}
	table, err := NewCanonicalTable([]Column{{Name: "level", Type: Categorical}, {Name: "count", Type: Numeric}}, rows)
	require.NoError(t, err)

	rows[0][0] = "WARN"
	row := table.Row(0)
	row[1] = 99.0

	assert.Equal(t, "ERROR", table.Value(0, "level"))
	n, ok := table.Number(0, "count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
}

func TestCanonicalTableJSONKeepsTypes(t *testing.T) {
	ts := time.Date(2024, 5, 9, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	table, err := NewCanonicalTable(
		[]Column{{Name: "hour", Type: Temporal}, {Name: "count", Type: Numeric}},
		[][]any{{ts, 4.0}, {nil, nil}},
	)
	require.NoError(t, err)

	data, err := json.Marshal(table)
	require.NoError(t, err)

	var decoded CanonicalTable
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, table.Columns(), decoded.Columns())
	assert.Equal(t, ts.UTC(), decoded.Value(0, "hour"))
	assert.Equal(t, 4.0, decoded.Value(0, "count"))
	assert.Nil(t, decoded.Value(1, "hour"))
}
