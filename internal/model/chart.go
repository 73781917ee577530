package model

import "fmt"

type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartPie     ChartKind = "pie"
	ChartScatter ChartKind = "scatter"
	ChartArea    ChartKind = "area"
	ChartHeatmap ChartKind = "heatmap"
)

// ChartKinds lists the supported kinds in a stable order.
var ChartKinds = []ChartKind{ChartBar, ChartLine, ChartPie, ChartScatter, ChartArea, ChartHeatmap}

func ParseChartKind(s string) (ChartKind, error) {
	for _, k := range ChartKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// Visual channels a column can be bound to.
const (
	ChannelX     = "x"
	ChannelY     = "y"
	ChannelLabel = "label"
	ChannelValue = "value"
	ChannelColor = "color"
)

// FieldBinding maps a canonical column onto a visual channel.
type FieldBinding struct {
	Channel string `json:"channel"`
	Field   string `json:"field"`
}

type ChartOptions struct {
	XAxisType     string `json:"xAxisType,omitempty"` // category | time | value
	Stacked       bool   `json:"stacked,omitempty"`
	ShowLegend    bool   `json:"showLegend"`
	Aggregation   string `json:"aggregation,omitempty"`
	MaxCategories int    `json:"maxCategories,omitempty"`
}

type Series struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

// PieSlice is one category. Missing marks the slice of rows with a null label.
type PieSlice struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing,omitempty"`
}

type ScatterPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

type HeatmapGrid struct {
	XLabels []string     `json:"xLabels"`
	YLabels []string     `json:"yLabels"`
	Cells   [][]*float64 `json:"cells"` // Cells[y][x]; nil when no row fell into the cell
}

// ChartData holds the series for exactly one encoding, selected by ChartSpec.Kind.
type ChartData struct {
	X       []any          `json:"x,omitempty"`
	Series  []Series       `json:"series,omitempty"`
	Slices  []PieSlice     `json:"slices,omitempty"`
	Points  []ScatterPoint `json:"points,omitempty"`
	Heatmap *HeatmapGrid   `json:"heatmap,omitempty"`
}

// ChartSpec is a renderable chart derived from a CanonicalTable. Every binding
// references a column of that table. Treat it as read-only once returned.
type ChartSpec struct {
	Kind     ChartKind      `json:"kind"`
	Title    string         `json:"title"`
	Bindings []FieldBinding `json:"bindings"`
	Options  ChartOptions   `json:"options"`
	Data     ChartData      `json:"data"`
}

// Binding returns the field bound to a channel, if any.
func (c *ChartSpec) Binding(channel string) (string, bool) {
	for _, b := range c.Bindings {
		if b.Channel == channel {
			return b.Field, true
		}
	}
	return "", false
}
