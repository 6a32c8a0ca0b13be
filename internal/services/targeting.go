package services

import "time"

// GenderAll in a targeting rule matches every participant.
const GenderAll = "ALL"

// AgeOn returns the number of whole years elapsed between dob and now.
func AgeOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// IsEligible reports whether demographics satisfy every rule set in t.
func IsEligible(t *Targeting, d Demographics, now time.Time) bool {
	if t.empty() {
		return true
	}
	if t.Gender != "" && t.Gender != GenderAll && d.Gender() != t.Gender {
		return false
	}
	if minAge, set := t.minAge(); set {
		dob, ok := d.DateOfBirth()
		if !ok || AgeOn(dob, now) < minAge {
			return false
		}
	}
	if minIncome, set := t.minIncome(); set {
		income, ok := d.AnnualIncome()
		if !ok || income < minIncome {
			return false
		}
	}
	return true
}

// Visible is the participant feed rule: the survey is ACTIVE, not yet answered, and targeted at d.
func Visible(sv *Survey, responded bool, d Demographics, now time.Time) bool {
	if sv == nil || sv.Status != StatusActive || responded {
		return false
	}
	return IsEligible(sv.Targeting, d, now)
}
