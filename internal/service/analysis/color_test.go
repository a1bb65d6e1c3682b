package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyColor(t *testing.T) {
	tests := []struct {
		name     string
		color    string
		bucket   ColorBucket
		severity int
		risk     bool
	}{
		{"plain red", "red", ColorRed, 4, true},
		{"fish wash", "Hugas Isda", ColorRed, 4, true},
		{"reddish phrase", "slightly reddish", ColorRed, 4, true},
		{"yellow", "Yellow", ColorYellow, 3, true},
		{"pineapple", "pineapple juice", ColorYellow, 3, true},
		{"cloudy", "CLOUDY", ColorCloudy, 2, true},
		{"rice wash", "hugas bigas", ColorCloudy, 2, true},
		{"clear", "clear", ColorClear, 1, false},
		{"empty", "", ColorUnknown, 2, true},
		{"unrecognized", "brown", ColorUnknown, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyColor(tt.color)
			assert.Equal(t, tt.bucket, got.Color)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.risk, got.HasInfectionRisk)
		})
	}
}

func TestClassifyColor_CaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, ClassifyColor("red"), ClassifyColor("  RED  "))

	for _, color := range []string{"Hugas Isda", "pineapple", "hugas bigas", "clear", "brown"} {
		bucket := ClassifyColor(color).Color
		assert.Equal(t, bucket, ClassifyColor(string(bucket)).Color, color)
	}
}

func TestClassifyColor_Precedence(t *testing.T) {
	// red wins over yellow and cloudy when several terms appear
	assert.Equal(t, ColorRed, ClassifyColor("cloudy yellow with red streaks").Color)
	assert.Equal(t, ColorYellow, ClassifyColor("cloudy yellow").Color)
}

func TestColorTable(t *testing.T) {
	table := ColorTable()
	assert.Len(t, table, 5)
	assert.Equal(t, ColorUnknown, table[len(table)-1].Color)
	assert.Equal(t, "Consult healthcare provider", table[len(table)-1].Recommendation)
	for _, r := range table {
		assert.Equal(t, r.RiskLevel != "low", r.HasInfectionRisk, r.Color)
	}
}
