package strategy

// PartialTP configures the one-shot partial take-profit. The reference
// systems disagreed on whether it exists at all, so it is a policy knob
// rather than a constant.
type PartialTP struct {
	Enabled  bool
	TriggerR float64 // favorable move, in R multiples, that arms the partial close
	Fraction float64 // share of the open quantity to close
}

// DefaultPartialTP takes half off at +1R.
func DefaultPartialTP() PartialTP {
	return PartialTP{Enabled: true, TriggerR: 1, Fraction: 0.5}
}

// Normalize fills zero values with the defaults for an enabled policy.
func (p PartialTP) Normalize() PartialTP {
	if !p.Enabled {
		return p
	}
	if p.TriggerR <= 0 {
		p.TriggerR = 1
	}
	if p.Fraction <= 0 || p.Fraction >= 1 {
		p.Fraction = 0.5
	}
	return p
}
