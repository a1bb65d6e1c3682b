package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBagCounts(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []int
	}{
		{"plain", "2,1,1", []int{2, 1, 1}},
		{"quoted", `"2,1,1"`, []int{2, 1, 1}},
		{"json array text", "[2, 1, 1]", []int{2, 1, 1}},
		{"quoted array", `"[2,1,1]"`, []int{2, 1, 1}},
		{"quoted tokens", `["2","1"]`, []int{2, 1}},
		{"junk dropped", "2,x,1", []int{2, 1}},
		{"slice", []interface{}{2.0, "1"}, []int{2, 1}},
		{"empty", "", []int{}},
		{"nil", nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBagCounts(tt.in))
		})
	}
}

func TestParseBagPercentagesRoundTrip(t *testing.T) {
	want := ParseBagPercentages("1.5,2.5,4.25")
	assert.Equal(t, []float64{1.5, 2.5, 4.25}, want)

	for _, in := range []string{
		`"1.5%,2.5%,4.25%"`,
		"1.5%, 2.5%, 4.25%",
		`["1.5%","2.5%","4.25%"]`,
		"[1.5,2.5,4.25]",
	} {
		assert.Equal(t, want, ParseBagPercentages(in), in)
	}
}

func TestBagSchedule(t *testing.T) {
	counts, pct := `"2,1,1"`, "1.5%,2.5%,4.25%"
	p := &Prescription{BagCountsRaw: &counts, BagPercentagesRaw: &pct, CreatedAt: time.Now()}
	p.ParseBags()

	assert.Equal(t, BagSchedule{
		{Dialysate: Dialysate150, Count: 2},
		{Dialysate: Dialysate250, Count: 1},
		{Dialysate: Dialysate425, Count: 1},
	}, p.Schedule)
	assert.Equal(t, map[Dialysate]int{Dialysate150: 2, Dialysate250: 1, Dialysate425: 1}, p.Schedule.Prescribed())

	// pairing stops at the shorter list and skips unsupported concentrations
	schedule := NewBagSchedule([]int{2, 3, 1}, []float64{1.5, 3.0})
	assert.Equal(t, BagSchedule{{Dialysate: Dialysate150, Count: 2}}, schedule)
	assert.Equal(t, map[Dialysate]int{Dialysate150: 2, Dialysate250: 0, Dialysate425: 0}, schedule.Prescribed())
}

func TestMonthOf(t *testing.T) {
	at := time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)
	r := MonthOf(at)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), r.To)
	assert.True(t, r.Contains(at))
	assert.False(t, r.Contains(r.To))
}
