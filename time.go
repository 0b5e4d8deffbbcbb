package identity

import "time"

// IsWithinThresholdPeriod checks if the given time is within the threshold
func IsWithinThresholdPeriod(t time.Time, pattern string, now func() time.Time) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	if now == nil {
		now = time.Now
	}

	threshold := now().Add(-duration)
	if t.After(threshold) {
		return true, nil
	}

	return false, nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, pattern string, now func() time.Time) (bool, error) {
	valid, err := IsWithinThresholdPeriod(t, pattern, now)
	if err != nil {
		return false, err
	}

	return !valid, nil
}
