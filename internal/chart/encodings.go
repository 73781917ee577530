package chart

import (
	"fmt"
	"sort"
	"time"

	"loginsight-backend/internal/model"
)

// axisColumn picks the single categorical-or-temporal column of a table.
func axisColumn(table *model.CanonicalTable, hint string) (model.Column, error) {
	axes := nonNumeric(table)
	if hint != "" {
		col, _ := table.Column(hint)
		if col.Type == model.Numeric {
			return model.Column{}, model.IncompatibleChartError("axis column %q is numeric", hint)
		}
	}
	if len(axes) != 1 {
		return model.Column{}, model.IncompatibleChartError(
			"need exactly one categorical or temporal column, table has %d", len(axes))
	}
	if hint != "" && axes[0].Name != hint {
		return model.Column{}, model.IncompatibleChartError("axis column %q is not the table's axis", hint)
	}
	return axes[0], nil
}

func nonNumeric(table *model.CanonicalTable) []model.Column {
	var out []model.Column
	for _, c := range table.Columns() {
		if c.Type != model.Numeric {
			out = append(out, c)
		}
	}
	return out
}

// valueColumns resolves hinted value columns, or every numeric column in table order.
func valueColumns(table *model.CanonicalTable, hinted []string) ([]model.Column, error) {
	if len(hinted) == 0 {
		return table.ColumnsOfType(model.Numeric), nil
	}
	out := make([]model.Column, 0, len(hinted))
	for _, name := range hinted {
		col, _ := table.Column(name)
		if col.Type != model.Numeric {
			return nil, model.IncompatibleChartError("value column %q is not numeric", name)
		}
		out = append(out, col)
	}
	return out, nil
}

// rowOrder returns row indices; a temporal axis is sorted ascending, stably, nulls last.
func rowOrder(table *model.CanonicalTable, axis model.Column) []int {
	order := make([]int, table.NumRows())
	for i := range order {
		order[i] = i
	}
	if axis.Type != model.Temporal {
		return order
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, okA := table.Value(order[a], axis.Name).(time.Time)
		tb, okB := table.Value(order[b], axis.Name).(time.Time)
		if !okA || !okB {
			return okA && !okB
		}
		return ta.Before(tb)
	})
	return order
}

func renderCartesian(table *model.CanonicalTable, kind model.ChartKind, hints Hints) (*model.ChartSpec, error) {
	axis, err := axisColumn(table, hints.X)
	if err != nil {
		return nil, err
	}
	values, err := valueColumns(table, hints.Values)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, model.IncompatibleChartError("%s chart needs at least one numeric column", kind)
	}

	order := rowOrder(table, axis)
	spec := &model.ChartSpec{
		Bindings: []model.FieldBinding{{Channel: model.ChannelX, Field: axis.Name}},
		Options: model.ChartOptions{
			XAxisType:  axisType(axis),
			Stacked:    kind == model.ChartArea && len(values) > 1,
			ShowLegend: len(values) > 1,
		},
	}
	spec.Data.X = make([]any, len(order))
	for i, r := range order {
		spec.Data.X[i] = table.Value(r, axis.Name)
	}
	for _, v := range values {
		spec.Bindings = append(spec.Bindings, model.FieldBinding{Channel: model.ChannelY, Field: v.Name})
		series := model.Series{Name: v.Name, Values: make([]*float64, len(order))}
		for i, r := range order {
			if n, ok := table.Number(r, v.Name); ok {
				series.Values[i] = &n
			}
		}
		spec.Data.Series = append(spec.Data.Series, series)
	}
	return spec, nil
}

func axisType(c model.Column) string {
	if c.Type == model.Temporal {
		return "time"
	}
	return "category"
}

func renderPie(table *model.CanonicalTable, hints Hints, maxCategories int) (*model.ChartSpec, error) {
	categorical := table.ColumnsOfType(model.Categorical)
	if len(categorical) != 1 || len(table.ColumnsOfType(model.Temporal)) != 0 {
		return nil, model.IncompatibleChartError("pie chart needs exactly one categorical column and no temporal column")
	}
	label := categorical[0]
	if hints.X != "" && hints.X != label.Name {
		return nil, model.IncompatibleChartError("label column %q is not the table's categorical column", hints.X)
	}
	values, err := valueColumns(table, hints.Values)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, model.IncompatibleChartError("pie chart needs exactly one numeric column, found %d", len(values))
	}
	value := values[0]

	// Null labels form their own slice, so they count toward the limit.
	type category struct {
		label   string
		missing bool
	}
	categoryOf := func(r int) category {
		if s, isStr := table.Value(r, label.Name).(string); isStr {
			return category{label: s}
		}
		return category{missing: true}
	}
	distinct := make(map[category]struct{})
	for r := 0; r < table.NumRows(); r++ {
		distinct[categoryOf(r)] = struct{}{}
	}
	if n := len(distinct); n > maxCategories {
		return nil, model.IncompatibleChartError(
			"pie chart supports at most %d categories, column %q has %d", maxCategories, label.Name, n)
	}

	spec := &model.ChartSpec{
		Bindings: []model.FieldBinding{
			{Channel: model.ChannelLabel, Field: label.Name},
			{Channel: model.ChannelValue, Field: value.Name},
		},
		Options: model.ChartOptions{ShowLegend: true, Aggregation: "sum", MaxCategories: maxCategories},
	}
	slot := make(map[category]int)
	for r := 0; r < table.NumRows(); r++ {
		n, ok := table.Number(r, value.Name)
		if !ok {
			continue
		}
		c := categoryOf(r)
		i, seen := slot[c]
		if !seen {
			i = len(spec.Data.Slices)
			slot[c] = i
			spec.Data.Slices = append(spec.Data.Slices, model.PieSlice{Label: c.label, Missing: c.missing})
		}
		spec.Data.Slices[i].Value += n
	}
	return spec, nil
}

func renderScatter(table *model.CanonicalTable, hints Hints) (*model.ChartSpec, error) {
	numeric := table.ColumnsOfType(model.Numeric)
	if len(numeric) < 2 {
		return nil, model.IncompatibleChartError("scatter chart needs at least two numeric columns, found %d", len(numeric))
	}
	x, y := numeric[0].Name, numeric[1].Name
	if hints.X != "" {
		col, _ := table.Column(hints.X)
		if col.Type != model.Numeric {
			return nil, model.IncompatibleChartError("x column %q is not numeric", hints.X)
		}
		x = hints.X
		if y == x {
			y = numeric[0].Name
		}
	}
	if len(hints.Values) > 0 {
		values, err := valueColumns(table, hints.Values[:1])
		if err != nil {
			return nil, err
		}
		y = values[0].Name
	}
	if x == y {
		return nil, model.IncompatibleChartError("scatter chart needs two distinct numeric columns")
	}

	spec := &model.ChartSpec{
		Bindings: []model.FieldBinding{
			{Channel: model.ChannelX, Field: x},
			{Channel: model.ChannelY, Field: y},
		},
		Options: model.ChartOptions{XAxisType: "value"},
	}
	var color string
	if categorical := table.ColumnsOfType(model.Categorical); len(categorical) == 1 {
		color = categorical[0].Name
		spec.Bindings = append(spec.Bindings, model.FieldBinding{Channel: model.ChannelColor, Field: color})
		spec.Options.ShowLegend = true
	}
	for r := 0; r < table.NumRows(); r++ {
		xv, okX := table.Number(r, x)
		yv, okY := table.Number(r, y)
		if !okX || !okY {
			continue
		}
		p := model.ScatterPoint{X: xv, Y: yv}
		if color != "" {
			p.Color, _ = table.Value(r, color).(string)
		}
		spec.Data.Points = append(spec.Data.Points, p)
	}
	return spec, nil
}

func renderHeatmap(table *model.CanonicalTable, hints Hints) (*model.ChartSpec, error) {
	axes := nonNumeric(table)
	var xCol, yCol model.Column
	switch {
	case hints.X != "" && hints.Y != "":
		xCol, _ = table.Column(hints.X)
		yCol, _ = table.Column(hints.Y)
		if xCol.Type == model.Numeric || yCol.Type == model.Numeric || xCol.Name == yCol.Name {
			return nil, model.IncompatibleChartError("heatmap axes must be two distinct categorical or temporal columns")
		}
	case len(axes) == 2:
		xCol, yCol = axes[0], axes[1]
		if hints.X == yCol.Name || hints.Y == xCol.Name {
			xCol, yCol = yCol, xCol
		}
	default:
		return nil, model.IncompatibleChartError(
			"heatmap needs exactly two categorical or temporal columns, table has %d", len(axes))
	}

	values, err := valueColumns(table, hints.Values)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, model.IncompatibleChartError("heatmap needs exactly one numeric value column, found %d", len(values))
	}
	value := values[0]

	xLabels, xIndex := labels(table, xCol)
	yLabels, yIndex := labels(table, yCol)
	cells := make([][]*float64, len(yLabels))
	for i := range cells {
		cells[i] = make([]*float64, len(xLabels))
	}
	for r := 0; r < table.NumRows(); r++ {
		xv, yv := table.Value(r, xCol.Name), table.Value(r, yCol.Name)
		n, ok := table.Number(r, value.Name)
		if xv == nil || yv == nil || !ok {
			continue
		}
		cell := &cells[yIndex[labelOf(yv)]][xIndex[labelOf(xv)]]
		if *cell == nil {
			sum := n
			*cell = &sum
			continue
		}
		**cell += n
	}

	return &model.ChartSpec{
		Bindings: []model.FieldBinding{
			{Channel: model.ChannelX, Field: xCol.Name},
			{Channel: model.ChannelY, Field: yCol.Name},
			{Channel: model.ChannelValue, Field: value.Name},
		},
		Options: model.ChartOptions{XAxisType: axisType(xCol), ShowLegend: true, Aggregation: "sum"},
		Data: model.ChartData{
			Heatmap: &model.HeatmapGrid{XLabels: xLabels, YLabels: yLabels, Cells: cells},
		},
	}, nil
}

// labels lists the distinct non-null values of an axis: ascending for time, first-seen otherwise.
func labels(table *model.CanonicalTable, axis model.Column) ([]string, map[string]int) {
	var out []string
	index := make(map[string]int)
	for _, r := range rowOrder(table, axis) {
		v := table.Value(r, axis.Name)
		if v == nil {
			continue
		}
		l := labelOf(v)
		if _, seen := index[l]; seen {
			continue
		}
		index[l] = len(out)
		out = append(out, l)
	}
	return out, index
}

func labelOf(v any) string {
	switch tv := v.(type) {
	case time.Time:
		return tv.Format(time.RFC3339)
	case string:
		return tv
	default:
		return fmt.Sprint(tv)
	}
}
