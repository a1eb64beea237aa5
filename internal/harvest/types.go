// Package harvest defines core types shared across subsystems.
package harvest

import (
	"sort"
	"time"
)

// Region is one of the geographic areas the upstream search API filters on.
type Region string

// Region values accepted by the upstream geographicAreaFilter facet.
const (
	RegionAmerica          Region = "America"
	RegionAsiaPacific      Region = "Asia Pacific"
	RegionEurope           Region = "Europe"
	RegionMiddleEastAfrica Region = "Middle East / Africa"
)

// AllRegions lists every supported region in a fixed order.
func AllRegions() []Region {
	return []Region{RegionAmerica, RegionAsiaPacific, RegionEurope, RegionMiddleEastAfrica}
}

// ParseRegion maps a user-supplied string onto a known Region.
func ParseRegion(s string) (Region, bool) {
	for _, r := range AllRegions() {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Query captures one harvest request: an optional free-text keyword plus a
// region selection. An empty region list means "all regions".
type Query struct {
	Keyword string   `json:"keyword"`
	Regions []Region `json:"regions"`
}

// EffectiveRegions expands an empty selection to all regions.
func (q Query) EffectiveRegions() []Region {
	if len(q.Regions) == 0 {
		return AllRegions()
	}
	return q.Regions
}

// SortedRegions returns the effective regions in lexical order, for use in
// cache keys and other order-insensitive comparisons.
func (q Query) SortedRegions() []Region {
	regions := append([]Region(nil), q.EffectiveRegions()...)
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
	return regions
}

// RawRecord is one listing exactly as returned by the upstream API. The
// schema is not fixed by this system; only the fields the normalizer reads
// are interpreted.
type RawRecord map[string]any

// String returns the value of key as a string, or "" when the key is absent
// or holds a non-string value.
func (r RawRecord) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Has reports whether the record carries the key at all.
func (r RawRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// RawTable is the ordered sequence of harvested records. Insertion order is
// the upstream's page-then-hit order and must be preserved.
type RawTable []RawRecord

// PageResult is one query result block in a search response.
type PageResult struct {
	Hits []RawRecord `json:"hits"`
}

// SearchResponse is the parsed upstream response for a single page fetch.
type SearchResponse struct {
	Results []PageResult `json:"results"`
}

// Hits flattens all result blocks into one hit list, preserving order.
func (r SearchResponse) Hits() []RawRecord {
	var hits []RawRecord
	for _, res := range r.Results {
		hits = append(hits, res.Hits...)
	}
	return hits
}

// Status represents the lifecycle state of a harvest run.
type Status string

// Status values kept in the harvest store.
const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Run is the metadata recorded for each harvest request.
type Run struct {
	ID        string    `json:"id"`
	Query     Query     `json:"query"`
	Status    Status    `json:"status"`
	Records   int       `json:"records"`
	Pages     int       `json:"pages"`
	ErrorText string    `json:"error_text,omitempty"`
	Started   time.Time `json:"started_at"`
	Finished  time.Time `json:"finished_at,omitzero"`
}
