package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFluidBalance(t *testing.T) {
	tests := []struct {
		name      string
		in, out   float64
		want      float64
		favorable bool
		sign      string
		remark    string
		status    string
	}{
		{"retention", 2050, 2300, 250, false, "positive", RemarkFluidRetention, BalanceStatusWarning},
		{"removal", 2000, 1800, -200, true, "negative", RemarkGoodExchange, BalanceStatusGood},
		{"neutral", 2000, 2000, 0, true, "zero", RemarkGoodExchange, BalanceStatusGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFluidBalance(tt.in, tt.out)
			assert.Equal(t, tt.want, b.Float())
			assert.Equal(t, tt.favorable, b.Favorable())
			assert.Equal(t, !tt.favorable, b.Retention())
			assert.Equal(t, tt.sign, b.Sign())
			assert.Equal(t, tt.remark, b.Remark())
			assert.Equal(t, tt.status, b.Status())
		})
	}
}

func TestTreatmentDetailBalance(t *testing.T) {
	in, out := 2050.0, 2300.0

	d := &TreatmentDetail{Balance: -10, VolumeIn: &in, VolumeOut: &out}
	assert.True(t, d.HasVolumes())
	assert.Equal(t, FluidBalance(250), d.FluidBalance())

	// without both volumes the stored value stands
	d = &TreatmentDetail{Balance: -10, VolumeIn: &in}
	assert.False(t, d.HasVolumes())
	assert.Equal(t, FluidBalance(-10), d.FluidBalance())
}
