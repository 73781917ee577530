package model

import "encoding/json"

type RawKind string

const (
	RawHits         RawKind = "hits"
	RawAggregations RawKind = "aggregations"
)

// RawResult is the untyped payload returned by the search backend. Only the
// normalizer reads Hits and Aggregations.
type RawResult struct {
	Kind         RawKind
	Index        string
	Hits         []json.RawMessage          // _source documents
	Aggregations map[string]json.RawMessage // keyed by aggregation name
	Total        int64
	TookMs       int64
}

// Ref returns the reference stored on a turn.
func (r *RawResult) Ref() *RawResultRef {
	return &RawResultRef{Index: r.Index, TotalHits: r.Total, TookMs: r.TookMs}
}
