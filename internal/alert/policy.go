package alert

// PolicyKind selects how a sampled value is compared against its
// configured bounds.
type PolicyKind int

const (
	// PolicyGauge covers percentage gauges: breach at value >= threshold,
	// clear only once the value drops below threshold minus hysteresis.
	PolicyGauge PolicyKind = iota
	// PolicyStatus covers boolean observations encoded as 0/1: breach
	// whenever the observed state differs from the expected one.
	PolicyStatus
	// PolicyCounter covers per-interval counters: breach when the new
	// occurrences since the last sample exceed the limit.
	PolicyCounter
)

// Verdict is the classification of a single sample.
type Verdict int

const (
	// VerdictHold means the value sits inside the hysteresis band: no
	// breach, but not low enough to clear an active alert either.
	VerdictHold Verdict = iota
	VerdictBreach
	VerdictClear
)

// Policy maps a sampled value to a Verdict. Pure, no state.
type Policy struct {
	Kind         PolicyKind
	Threshold    float64
	Hysteresis   float64
	Limit        float64
	ExpectActive bool
}

// Classify applies the policy to a value.
func (p Policy) Classify(value float64) Verdict {
	switch p.Kind {
	case PolicyStatus:
		active := value >= 0.5
		if active != p.ExpectActive {
			return VerdictBreach
		}
		return VerdictClear
	case PolicyCounter:
		if value > p.Limit {
			return VerdictBreach
		}
		return VerdictClear
	default:
		if value >= p.Threshold {
			return VerdictBreach
		}
		if value < p.Threshold-p.Hysteresis {
			return VerdictClear
		}
		return VerdictHold
	}
}

// GaugePolicy builds a gauge policy with the given bounds.
func GaugePolicy(threshold, hysteresis float64) Policy {
	return Policy{Kind: PolicyGauge, Threshold: threshold, Hysteresis: hysteresis}
}

// StatusPolicy builds a status policy expecting the given state.
func StatusPolicy(expectActive bool) Policy {
	return Policy{Kind: PolicyStatus, ExpectActive: expectActive}
}

// CounterPolicy builds a counter policy with the given per-interval limit.
func CounterPolicy(limit int) Policy {
	return Policy{Kind: PolicyCounter, Limit: float64(limit)}
}
