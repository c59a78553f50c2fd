package services

import (
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// Confidence scoring for relationship suggestions. The absolute numbers are
// tunable; what matters is the ordering they induce: strong naming evidence
// needs less statistical proof, generic column names are penalized, and zero
// overlap is an automatic reject handled before scoring.
const (
	scoreTypeMatch       = 40
	scoreStrongNaming    = 30
	scoreWeakNaming      = 12
	scorePreferredShape  = 5 // n-1 and 1-1 are the join shapes the planner likes
	scoreOverlapHigh     = 15
	scoreOverlapModerate = 8

	penaltyOverlapLow  = 15
	penaltyGenericName = 20

	overlapHighCoverage     = 0.9
	overlapModerateCoverage = 0.6
	overlapLowCoverage      = 0.3

	// suggestionThreshold is the minimum confidence to surface a suggestion;
	// strongNamingThreshold applies instead when naming evidence is strong.
	suggestionThreshold   = 55
	strongNamingThreshold = 45

	// manyToManyThreshold gates n-n candidates, which are never executable
	// and only worth surfacing on overwhelming evidence.
	manyToManyThreshold = 72

	maxConfidence = 99
)

// scoreSuggestion computes a confidence in [0, maxConfidence] from naming
// evidence, derived cardinality and optional overlap statistics.
func scoreSuggestion(evidence NamingEvidence, cardinality string, overlap *models.OverlapProfile, reasons []string) int {
	score := 0

	if evidence.TypesCompatible {
		score += scoreTypeMatch
	}

	switch evidence.Strength {
	case namingStrong:
		score += scoreStrongNaming
	case namingWeak:
		score += scoreWeakNaming
	}

	if cardinality == models.CardinalityNTo1 || cardinality == models.Cardinality1ToN ||
		cardinality == models.Cardinality1To1 {
		score += scorePreferredShape
	}

	if overlap != nil {
		switch coverage := overlap.BestCoverage(); {
		case coverage >= overlapHighCoverage:
			score += scoreOverlapHigh
		case coverage >= overlapModerateCoverage:
			score += scoreOverlapModerate
		case coverage < overlapLowCoverage:
			score -= penaltyOverlapLow
		}
	}

	for _, reason := range reasons {
		if reason == models.ReasonGenericColumnName {
			score -= penaltyGenericName
		}
	}

	if score < 0 {
		score = 0
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

// acceptanceThreshold returns the minimum confidence for a candidate with
// the given evidence and cardinality.
func acceptanceThreshold(evidence NamingEvidence, cardinality string) int {
	if cardinality == models.CardinalityNToN {
		return manyToManyThreshold
	}
	if evidence.Strength == namingStrong {
		return strongNamingThreshold
	}
	return suggestionThreshold
}
