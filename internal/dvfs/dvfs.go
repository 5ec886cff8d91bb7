package dvfs

import "codeberg.org/mutker/cpufreqctl/internal/errors"

const percentScale = 100.0

// Policy bounds the frequency decision. The power ceiling is advisory: it is
// carried in the policy shape but not yet consulted by Decide.
type Policy struct {
	MinFrequencyMHz   uint64
	MaxFrequencyMHz   uint64
	TargetTemperature float64
	PowerCeilingWatts float64
}

func (p Policy) Validate() error {
	errFactory := errors.New()

	if p.MinFrequencyMHz == 0 {
		return errFactory.WithData(ErrInvalidPolicy, "minimum frequency must be positive")
	}
	if p.MinFrequencyMHz > p.MaxFrequencyMHz {
		return errFactory.WithData(ErrInvalidPolicy, "minimum frequency above maximum")
	}
	if p.TargetTemperature <= 0 {
		return errFactory.WithData(ErrInvalidPolicy, "target temperature must be positive")
	}

	return nil
}

// Decide maps load and temperature onto a target operating frequency:
// linear interpolation between the policy bounds by load, a multiplicative
// derating by target/temperature when running above the thermal target, and
// a final clamp into the policy range. A malformed policy is rejected, never
// treated as an inverted range. Pure; safe to call concurrently.
func Decide(loadPercent, temperatureCelsius float64, policy Policy) (uint64, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	load := clampFloat(loadPercent, 0, percentScale)
	span := float64(policy.MaxFrequencyMHz - policy.MinFrequencyMHz)
	target := float64(policy.MinFrequencyMHz) + span*(load/percentScale)

	if temperatureCelsius > policy.TargetTemperature {
		// The hotter the overshoot, the stronger the derating; the ratio is
		// always <= 1 here.
		target *= policy.TargetTemperature / temperatureCelsius
	}

	return clamp(uint64(target), policy.MinFrequencyMHz, policy.MaxFrequencyMHz), nil
}

func clamp(value, minValue, maxValue uint64) uint64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}

func clampFloat(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
