// Package models defines data structures shared by the report stages.
package models

import (
	"sort"
	"time"
)

// Record is one petroleum sale observation.
type Record struct {
	Country string  `json:"country" yaml:"country"`
	Year    int     `json:"year" yaml:"year"`
	Product string  `json:"petroleum_product" yaml:"petroleum_product"`
	Sale    float64 `json:"sale" yaml:"sale"`
}

// Dataset is the ordered set of records loaded from one source.
// Stages treat it as read-only once built.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Records   []Record
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Countries returns the distinct countries in ascending order.
func (d *Dataset) Countries() []string {
	return distinctStrings(d, func(r Record) string { return r.Country })
}

// Products returns the distinct petroleum products in ascending order.
func (d *Dataset) Products() []string {
	return distinctStrings(d, func(r Record) string { return r.Product })
}

// Years returns the distinct years in ascending order.
func (d *Dataset) Years() []int {
	if d == nil {
		return nil
	}
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, r := range d.Records {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		out = append(out, r.Year)
	}
	sort.Ints(out)
	return out
}

func distinctStrings(d *Dataset, key func(Record) string) []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range d.Records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunResult summarises one end-to-end report run.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	RecordCount    int
	Countries      int
	Products       int
	Years          int
	StorePath      string
	StoreRebuilt   bool
	RawRows        int
	NormalizedRows int
	Outcome        string
}
