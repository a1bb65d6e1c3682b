package model

// FluidBalance is the net volume of one exchange in millilitres:
//
//	FluidBalance = VolumeOut - VolumeIn
//
// Zero or negative means at least as much fluid was drained as infused (favorable).
// Positive means fluid stayed in the patient (possible retention).
type FluidBalance float64

const (
	RemarkGoodExchange   = "Good PD exchange"
	RemarkFluidRetention = "Possible fluid retention"

	BalanceStatusGood    = "good"
	BalanceStatusWarning = "warning"
)

// NewFluidBalance is the only place the sign convention is applied.
func NewFluidBalance(volumeIn, volumeOut float64) FluidBalance {
	return FluidBalance(volumeOut - volumeIn)
}

func (b FluidBalance) Float() float64 {
	return float64(b)
}

func (b FluidBalance) Favorable() bool {
	return b <= 0
}

func (b FluidBalance) Retention() bool {
	return b > 0
}

// Sign is "positive", "negative" or "zero".
func (b FluidBalance) Sign() string {
	switch {
	case b > 0:
		return "positive"
	case b < 0:
		return "negative"
	default:
		return "zero"
	}
}

func (b FluidBalance) Remark() string {
	if b.Favorable() {
		return RemarkGoodExchange
	}
	return RemarkFluidRetention
}

func (b FluidBalance) Interpretation() string {
	switch {
	case b > 0:
		return "Positive balance - Possible fluid retention"
	case b < 0:
		return "Negative balance - Good fluid removal"
	default:
		return "Neutral balance - Ideal"
	}
}

func (b FluidBalance) Status() string {
	if b.Favorable() {
		return BalanceStatusGood
	}
	return BalanceStatusWarning
}

// BalanceLegend explains each sign for API consumers.
var BalanceLegend = map[string]string{
	"formula":  "Balance = VolumeOut - VolumeIn",
	"positive": "Possible fluid retention (VolumeOut < VolumeIn)",
	"negative": "Good fluid removal (VolumeOut > VolumeIn)",
	"zero":     "Balanced (VolumeOut = VolumeIn)",
}
