package ranking

import (
	"github.com/euskotrips/euskotrips/internal/document"
)

// DefaultBaseScore is used when the index reports no relevance score.
const DefaultBaseScore = 1.0

// BaseScore returns the index relevance score of a hit, or DefaultBaseScore
// when it is missing or zero.
func BaseScore(hit document.Hit) float64 {
	if hit.Score == nil || *hit.Score == 0 {
		return DefaultBaseScore
	}
	return *hit.Score
}

// Score computes the final score of a candidate against a profile.
//
// Formula: base + category + municipality + territory, where each bonus
// applies when the candidate's value (any member, for a multi-label
// category) is in the corresponding profile set.
func Score(hit document.Hit, profile Profile, bonuses Bonuses) float64 {
	score := BaseScore(hit)
	doc := &hit.Document

	if doc.Category.Intersects(profile.Categories) {
		score += bonuses.Category
	}
	if m := doc.MunicipalityValue(); m != "" {
		if _, ok := profile.Municipalities[m]; ok {
			score += bonuses.Municipality
		}
	}
	if t := doc.TerritoryValue(); t != "" {
		if _, ok := profile.Territories[t]; ok {
			score += bonuses.Territory
		}
	}

	return score
}
