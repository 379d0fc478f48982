package policies

import "time"

const (
	DefaultTimeBucketWidth     = 12 * time.Hour
	DefaultTimeBucketRepeatLen = 128
)

type TimeBucketPolicy struct {
	Width     time.Duration
	RepeatLen int64
}

func NewTimeBucketPolicy(width time.Duration, repeatLen int64) TimeBucketPolicy {
	if width < time.Second {
		width = DefaultTimeBucketWidth
	}
	if repeatLen <= 0 {
		repeatLen = DefaultTimeBucketRepeatLen
	}
	return TimeBucketPolicy{Width: width, RepeatLen: repeatLen}
}

// Buckets returns the bucket for unixSeconds and the previous bucket, which widens
// the reuse window across a rollover. Both are in [0, RepeatLen).
func (p TimeBucketPolicy) Buckets(unixSeconds int64) (bucket int64, withMargin int64) {
	policy := NewTimeBucketPolicy(p.Width, p.RepeatLen)
	rounded := roundDiv(unixSeconds, int64(policy.Width/time.Second))
	return floorMod(rounded, policy.RepeatLen), floorMod(rounded-1, policy.RepeatLen)
}

// roundDiv rounds half up, matching round(a / b) for b > 0.
func roundDiv(a, b int64) int64 {
	numerator := 2*a + b
	denominator := 2 * b
	quotient := numerator / denominator
	if numerator%denominator != 0 && (numerator < 0) != (denominator < 0) {
		quotient--
	}
	return quotient
}

func floorMod(value, modulus int64) int64 {
	out := value % modulus
	if out < 0 {
		out += modulus
	}
	return out
}
