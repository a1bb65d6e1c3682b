package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialysate(t *testing.T) {
	tests := []struct {
		in   string
		want Dialysate
		ok   bool
	}{
		{"1.5", Dialysate150, true},
		{" 2.50 ", Dialysate250, true},
		{"4.25%", Dialysate425, true},
		{"2.5 %", Dialysate250, true},
		{"3.0", DialysateUnknown, false},
		{"", DialysateUnknown, false},
		{"abc", DialysateUnknown, false},
	}

	for _, tt := range tests {
		got, ok := ParseDialysate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDialysateText(t *testing.T) {
	b, err := json.Marshal(map[Dialysate]int{Dialysate150: 2, Dialysate425: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1.5":2,"4.25":1}`, string(b))

	var entry BagEntry
	require.NoError(t, json.Unmarshal([]byte(`{"dialysate":"2.5","count":3}`), &entry))
	assert.Equal(t, BagEntry{Dialysate: Dialysate250, Count: 3}, entry)

	assert.Error(t, json.Unmarshal([]byte(`{"dialysate":"7","count":1}`), &entry))

	_, err = DialysateUnknown.MarshalText()
	assert.Error(t, err)
}

func TestParseTreatmentStatus(t *testing.T) {
	for in, want := range map[string]TreatmentStatus{
		"in-progress": TreatmentInProgress,
		"ongoing":     TreatmentInProgress,
		" Completed ": TreatmentCompleted,
	} {
		got, ok := ParseTreatmentStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseTreatmentStatus("paused")
	assert.False(t, ok)

	var s TreatmentStatus
	require.NoError(t, s.Scan([]byte("ongoing")))
	assert.Equal(t, TreatmentInProgress, s)
}
