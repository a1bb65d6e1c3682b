package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Prescription struct {
	ID                int64     `db:"prescription_id" json:"prescription_id"`
	PatientID         int64     `db:"patient_id" json:"patient_id"`
	DoctorID          *int64    `db:"doctor_id" json:"doctor_id,omitempty"`
	TotalExchanges    *int      `db:"pd_total_exchanges" json:"pd_total_exchanges"`
	BagCountsRaw      *string   `db:"pd_bag_counts" json:"-"`
	BagPercentagesRaw *string   `db:"pd_bag_percentages" json:"-"`
	Modality          *string   `db:"modality" json:"modality,omitempty"`
	Instructions      *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`

	BagCounts      []int       `db:"-" json:"pd_bag_counts"`
	BagPercentages []float64   `db:"-" json:"pd_bag_percentages"`
	Schedule       BagSchedule `db:"-" json:"bag_schedule"`
}

// ParseBags fills the typed bag fields from the raw columns.
func (p *Prescription) ParseBags() {
	var counts, percentages interface{}
	if p.BagCountsRaw != nil {
		counts = *p.BagCountsRaw
	}
	if p.BagPercentagesRaw != nil {
		percentages = *p.BagPercentagesRaw
	}
	p.BagCounts = ParseBagCounts(counts)
	p.BagPercentages = ParseBagPercentages(percentages)
	p.Schedule = NewBagSchedule(p.BagCounts, p.BagPercentages)
}

func (p *Prescription) DailyExchanges() int {
	if p == nil || p.TotalExchanges == nil {
		return 0
	}
	return *p.TotalExchanges
}

// BagEntry is the prescribed number of bags at one concentration.
type BagEntry struct {
	Dialysate Dialysate `json:"dialysate"`
	Count     int       `json:"count"`
}

type BagSchedule []BagEntry

// NewBagSchedule pairs counts with percentages by position. Pairing stops at the
// shorter sequence and concentrations outside the supported set are skipped.
func NewBagSchedule(counts []int, percentages []float64) BagSchedule {
	n := len(counts)
	if len(percentages) < n {
		n = len(percentages)
	}
	schedule := make(BagSchedule, 0, n)
	for i := 0; i < n; i++ {
		d, ok := DialysateFromPercent(percentages[i])
		if !ok {
			continue
		}
		schedule = append(schedule, BagEntry{Dialysate: d, Count: counts[i]})
	}
	return schedule
}

// Prescribed totals the schedule per concentration.
func (s BagSchedule) Prescribed() map[Dialysate]int {
	out := make(map[Dialysate]int, len(dialysates))
	for _, d := range Dialysates() {
		out[d] = 0
	}
	for _, e := range s {
		out[e.Dialysate] += e.Count
	}
	return out
}

// ParseBagCounts reads a stored bag-count sequence. Strings may carry outer quotes
// or brackets; tokens that are not numbers are dropped.
func ParseBagCounts(v interface{}) []int {
	nums := parseNumbers(v, false)
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		out = append(out, int(n))
	}
	return out
}

// ParseBagPercentages is ParseBagCounts for concentrations; "%" suffixes are ignored.
func ParseBagPercentages(v interface{}) []float64 {
	return parseNumbers(v, true)
}

func parseNumbers(v interface{}, stripPercent bool) []float64 {
	out := []float64{}
	switch val := v.(type) {
	case nil:
	case string:
		out = append(out, parseNumberList(val, stripPercent)...)
	case []byte:
		out = append(out, parseNumberList(string(val), stripPercent)...)
	case []int:
		for _, n := range val {
			out = append(out, float64(n))
		}
	case []float64:
		out = append(out, val...)
	case []string:
		for _, s := range val {
			if n, ok := parseNumber(s, stripPercent); ok {
				out = append(out, n)
			}
		}
	case []interface{}:
		for _, item := range val {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			case json.Number:
				if f, err := n.Float64(); err == nil {
					out = append(out, f)
				}
			case string:
				if f, ok := parseNumber(n, stripPercent); ok {
					out = append(out, f)
				}
			}
		}
	}
	return out
}

func parseNumberList(s string, stripPercent bool) []float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []float64
	for _, token := range strings.Split(s, ",") {
		if n, ok := parseNumber(token, stripPercent); ok {
			out = append(out, n)
		}
	}
	return out
}

func parseNumber(token string, stripPercent bool) (float64, bool) {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, `"'`)
	if stripPercent {
		token = strings.TrimSpace(strings.ReplaceAll(token, "%", ""))
	}
	n, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
