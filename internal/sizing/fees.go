package sizing

// FeeTier selects which fee rate applies to an account
type FeeTier string

const (
	FeeTierDefault FeeTier = "default"
	FeeTierVIP     FeeTier = "vip"
	FeeTierPromo   FeeTier = "promo"
)

// FeeSchedule holds the taker fee rates per account tier. It is a plain
// value passed to whoever needs it; there is no process-wide rate.
type FeeSchedule struct {
	Default float64 `json:"default"`
	VIP     float64 `json:"vip"`
	Promo   float64 `json:"promo"`
}

// DefaultFeeSchedule returns the standard futures fee rates
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Default: 0.0008,
		VIP:     0.0004,
		Promo:   0.0006,
	}
}

// Rate returns the fee rate for a tier, falling back to the default rate
// for unknown tiers.
func (f FeeSchedule) Rate(tier FeeTier) float64 {
	switch tier {
	case FeeTierVIP:
		return f.VIP
	case FeeTierPromo:
		return f.Promo
	default:
		return f.Default
	}
}
