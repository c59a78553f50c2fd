package services

import (
	"testing"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

func TestScoreSuggestionOrdering(t *testing.T) {
	strong := NamingEvidence{Strength: namingStrong, TypesCompatible: true}
	weak := NamingEvidence{Strength: namingWeak, TypesCompatible: true}

	strongScore := scoreSuggestion(strong, models.CardinalityNTo1, nil, nil)
	weakScore := scoreSuggestion(weak, models.CardinalityNTo1, nil, nil)
	if strongScore <= weakScore {
		t.Errorf("strong naming (%d) should outscore weak naming (%d)", strongScore, weakScore)
	}

	incompatible := NamingEvidence{Strength: namingStrong, TypesCompatible: false}
	if got := scoreSuggestion(incompatible, models.CardinalityNTo1, nil, nil); got >= strongScore {
		t.Errorf("type mismatch (%d) should score below type match (%d)", got, strongScore)
	}
}

func TestScoreSuggestionOverlapBands(t *testing.T) {
	evidence := NamingEvidence{Strength: namingStrong, TypesCompatible: true}
	base := scoreSuggestion(evidence, models.CardinalityNTo1, nil, nil)

	high := &models.OverlapProfile{OverlapDistinct: 95, FromCoverage: 0.95, ToCoverage: 0.5}
	moderate := &models.OverlapProfile{OverlapDistinct: 70, FromCoverage: 0.7, ToCoverage: 0.4}
	low := &models.OverlapProfile{OverlapDistinct: 2, FromCoverage: 0.1, ToCoverage: 0.05}

	highScore := scoreSuggestion(evidence, models.CardinalityNTo1, high, nil)
	moderateScore := scoreSuggestion(evidence, models.CardinalityNTo1, moderate, nil)
	lowScore := scoreSuggestion(evidence, models.CardinalityNTo1, low, nil)

	if highScore <= moderateScore {
		t.Errorf("high coverage (%d) should outscore moderate (%d)", highScore, moderateScore)
	}
	if moderateScore <= base {
		t.Errorf("moderate coverage (%d) should outscore no profile (%d)", moderateScore, base)
	}
	if lowScore >= base {
		t.Errorf("low coverage (%d) should be penalized below no profile (%d)", lowScore, base)
	}
}

func TestScoreSuggestionGenericNamePenalty(t *testing.T) {
	evidence := NamingEvidence{Strength: namingWeak, TypesCompatible: true}

	plain := scoreSuggestion(evidence, models.CardinalityNTo1, nil, nil)
	generic := scoreSuggestion(evidence, models.CardinalityNTo1, nil,
		[]string{models.ReasonGenericColumnName})

	if generic >= plain {
		t.Errorf("generic name (%d) should score below specific name (%d)", generic, plain)
	}
}

func TestScoreSuggestionBounds(t *testing.T) {
	worst := scoreSuggestion(NamingEvidence{Strength: namingNone}, models.CardinalityNToN,
		&models.OverlapProfile{FromCoverage: 0.01, ToCoverage: 0.01},
		[]string{models.ReasonGenericColumnName})
	if worst < 0 {
		t.Errorf("score must not go negative, got %d", worst)
	}

	best := scoreSuggestion(NamingEvidence{Strength: namingStrong, TypesCompatible: true},
		models.CardinalityNTo1,
		&models.OverlapProfile{OverlapDistinct: 100, FromCoverage: 1.0, ToCoverage: 1.0}, nil)
	if best > maxConfidence {
		t.Errorf("score must be capped at %d, got %d", maxConfidence, best)
	}
}

func TestStrongNamingPassesWithoutProfiling(t *testing.T) {
	// The canonical orders.customer_id -> customers.id case must clear its
	// threshold on naming evidence alone, so detection still works on
	// engines without live profiling.
	evidence := NamingEvidence{Strength: namingStrong, TypesCompatible: true}
	score := scoreSuggestion(evidence, models.CardinalityNTo1, nil, nil)
	if score < acceptanceThreshold(evidence, models.CardinalityNTo1) {
		t.Errorf("strong naming score %d should clear its threshold %d",
			score, acceptanceThreshold(evidence, models.CardinalityNTo1))
	}
	if score < 70 {
		t.Errorf("expected a high-confidence suggestion, got %d", score)
	}
}

func TestAcceptanceThreshold(t *testing.T) {
	strong := NamingEvidence{Strength: namingStrong}
	weak := NamingEvidence{Strength: namingWeak}

	if acceptanceThreshold(strong, models.CardinalityNTo1) >= acceptanceThreshold(weak, models.CardinalityNTo1) {
		t.Error("strong naming should need less proof than weak naming")
	}
	if acceptanceThreshold(strong, models.CardinalityNToN) != manyToManyThreshold {
		t.Error("n-n candidates must face the many-to-many threshold")
	}
}
