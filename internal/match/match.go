// Package match implements responder selection for distress signals.
//
// Selection is a single-pass greedy scan over the available responders.
// Distance is compared per axis as a raw coordinate delta, not as a
// combined geodesic distance.
package match

import (
	"math"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// SelectResponder returns the best available responder for the PWID, or nil
// when nobody qualifies. A nil result is an expected outcome, not an error.
//
// A candidate replaces the current best only when all of the following hold:
//   - its absolute latitude delta is strictly smaller than the best seen,
//   - its absolute longitude delta is strictly smaller than the best seen,
//   - it shares strictly more condition tags with the PWID than the best seen,
//   - it speaks the PWID's preferred language,
//   - its gender matches the PWID's preference.
//
// The strict comparisons make ties resolve in scan order: an equally good
// later candidate never displaces an earlier one.
func SelectResponder(pwid models.PWID, responders []models.Responder) *models.Responder {
	var best *models.Responder
	smallestLatitude := math.MaxFloat64
	smallestLongitude := math.MaxFloat64
	largestOverlap := 0

	for i := range responders {
		responder := &responders[i]
		if !responder.IsAvailable {
			continue
		}

		latitude := math.Abs(pwid.Location.Latitude - responder.Location.Latitude)
		longitude := math.Abs(pwid.Location.Longitude - responder.Location.Longitude)
		overlap := overlapCount(responder.Conditions(), pwid.MedicalConditions)
		speaksLanguage := containsString(responder.Languages, pwid.LanguagePreference)
		matchesGender := responder.Gender == pwid.GenderPreference

		if latitude < smallestLatitude && longitude < smallestLongitude &&
			overlap > largestOverlap && speaksLanguage && matchesGender {
			best = responder
			smallestLatitude = latitude
			smallestLongitude = longitude
			largestOverlap = overlap
		}
	}
	return best
}

// overlapCount returns the size of the intersection of two condition lists.
func overlapCount(conditions, required []string) int {
	if len(conditions) == 0 || len(required) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		set[c] = struct{}{}
	}
	count := 0
	for _, c := range required {
		if _, ok := set[c]; ok {
			count++
		}
	}
	return count
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
