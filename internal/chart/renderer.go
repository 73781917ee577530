package chart

import (
	"strings"

	"loginsight-backend/config"
	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
)

// Hints let the caller steer column selection. Every named column must exist.
type Hints struct {
	Title  string
	X      string   // axis column (bar, line, area, heatmap) or x value (scatter)
	Y      string   // second axis column (heatmap)
	Values []string // value columns, in series order
}

// Renderer is pure: the same table, kind and hints always yield an equal spec.
type Renderer interface {
	Render(table *model.CanonicalTable, kind model.ChartKind, hints Hints) (*model.ChartSpec, error)
	Recommend(table *model.CanonicalTable) model.ChartKind
}

type chartRenderer struct {
	pieMaxCategories int
	barMaxCategories int
}

func NewRenderer(cfg *config.Config) Renderer {
	return newRenderer(cfg.Chart.PieMaxCategories, cfg.Chart.BarMaxCategories)
}

func newRenderer(pieMax, barMax int) *chartRenderer {
	if pieMax <= 0 {
		pieMax = 50
	}
	if barMax <= 0 {
		barMax = 50
	}
	return &chartRenderer{pieMaxCategories: pieMax, barMaxCategories: barMax}
}

func (r *chartRenderer) Render(table *model.CanonicalTable, kind model.ChartKind, hints Hints) (*model.ChartSpec, error) {
	if table == nil || table.NumRows() == 0 {
		return nil, model.IncompatibleChartError("no data to chart")
	}
	if err := checkHints(table, hints); err != nil {
		return nil, err
	}

	var (
		spec *model.ChartSpec
		err  error
	)
	switch kind {
	case model.ChartBar, model.ChartLine, model.ChartArea:
		spec, err = renderCartesian(table, kind, hints)
	case model.ChartPie:
		spec, err = renderPie(table, hints, r.pieMaxCategories)
	case model.ChartScatter:
		spec, err = renderScatter(table, hints)
	case model.ChartHeatmap:
		spec, err = renderHeatmap(table, hints)
	default:
		return nil, model.IncompatibleChartError("unsupported chart kind %q", kind)
	}
	if err != nil {
		log.Debug().Err(err).Str("kind", string(kind)).Msg("Chart kind rejected for table")
		return nil, err
	}

	spec.Kind = kind
	spec.Title = hints.Title
	if spec.Title == "" {
		spec.Title = defaultTitle(spec)
	}
	return spec, nil
}

func (r *chartRenderer) Recommend(table *model.CanonicalTable) model.ChartKind {
	if table == nil {
		return model.ChartBar
	}
	numeric := len(table.ColumnsOfType(model.Numeric))
	temporal := len(table.ColumnsOfType(model.Temporal))
	categorical := table.ColumnsOfType(model.Categorical)

	switch {
	case temporal == 1 && len(categorical) == 0 && numeric >= 1:
		return model.ChartLine
	case len(categorical) == 1 && temporal == 0 && numeric >= 1 &&
		table.Distinct(categorical[0].Name) <= r.barMaxCategories:
		return model.ChartBar
	case numeric >= 2 && temporal == 0 && len(categorical) == 0:
		return model.ChartScatter
	case numeric == 1 && temporal+len(categorical) == 2:
		return model.ChartHeatmap
	default:
		return model.ChartBar
	}
}

func checkHints(table *model.CanonicalTable, hints Hints) error {
	names := append([]string{hints.X, hints.Y}, hints.Values...)
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := table.Column(name); !ok {
			return model.IncompatibleChartError("hinted column %q is not in the table", name)
		}
	}
	return nil
}

func defaultTitle(spec *model.ChartSpec) string {
	if spec.Kind == model.ChartHeatmap {
		x, _ := spec.Binding(model.ChannelX)
		y, _ := spec.Binding(model.ChannelY)
		v, _ := spec.Binding(model.ChannelValue)
		return v + " by " + x + " and " + y
	}
	var values, axes []string
	for _, b := range spec.Bindings {
		switch b.Channel {
		case model.ChannelY, model.ChannelValue:
			values = append(values, b.Field)
		case model.ChannelX, model.ChannelLabel:
			axes = append(axes, b.Field)
		}
	}
	if spec.Kind == model.ChartScatter || len(axes) == 0 {
		return strings.Join(values, " vs ")
	}
	return strings.Join(values, ", ") + " by " + strings.Join(axes, " and ")
}
