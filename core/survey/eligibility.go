package survey

import "time"

// CooldownPeriod is the minimum time between two assessments of the same user.
const CooldownPeriod = 7 * 24 * time.Hour

// CanTakeAssessment reports whether a user last assessed at `last` (nil: never) may submit at `now`.
// The boundary is inclusive: exactly CooldownPeriod after the last assessment is allowed.
func CanTakeAssessment(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= CooldownPeriod
}

// cooldownCutoff returns the latest last-assessment time that still allows a submission at `now`.
func cooldownCutoff(now time.Time) time.Time {
	return now.Add(-CooldownPeriod)
}
