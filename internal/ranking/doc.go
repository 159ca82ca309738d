// Package ranking turns a user's favorites into personalized recommendations.
//
// A request goes through four stages:
//
//	// Resolve favorites and build a preference profile
//	profile := ranking.BuildProfile(favoriteDocs)
//
//	// Score a candidate returned by the index
//	score := ranking.Score(hit, profile, bonuses)
//
//	// Or run the whole flow, including the generic fallbacks
//	ranker, err := ranking.NewRanker(index, favorites, cfg, metrics, logger)
//	if err != nil {
//		return err
//	}
//	result, err := ranker.Rank(ctx, ranking.Request{UserID: &id, Size: 10})
//
// Scoring:
//
// The final score is the index relevance score plus independent, additive
// bonuses for a shared category, municipality and territory. There is no
// capping and no frequency weighting: a favorite either contributes a value
// to the profile or it does not.
//
// Calibration:
//
// Bonus values can be tuned at deploy time through a JSON calibration file
// loaded at startup. Missing or zero values fall back to the defaults. See
// configs/ranking.calibration.json.
package ranking
