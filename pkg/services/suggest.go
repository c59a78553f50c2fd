package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
	"github.com/quarrybi/semantic-engine/pkg/config"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// InferenceService proposes and validates join edges between tables without
// requiring the user to know SQL. Detection runs in two stages: naming
// heuristics over column and table names, then live profiling to confirm or
// reject candidates on sources that support it.
type InferenceService interface {
	// AutoDetect scans qualifying column pairs and returns ranked
	// suggestions. tableIDs optionally restricts the scan to a subset.
	// Results are deterministic for a fixed catalog snapshot.
	AutoDetect(ctx context.Context, catalog *Catalog, tableIDs []uuid.UUID) ([]*models.RelationshipSuggestion, error)

	// Validate classifies one explicit column pair: derived cardinality,
	// validation status and supporting reasons. Used on relationship create
	// and on re-validation during reads.
	Validate(ctx context.Context, catalog *Catalog, rel *models.ModelRelationship) (*PairAssessment, error)
}

// PairAssessment is the inference verdict on one column pair.
type PairAssessment struct {
	Cardinality      string
	ValidationStatus string
	ValidationReason string
	Confidence       int
	Reasons          []string
}

type inferenceService struct {
	factory datasource.Factory
	cfg     config.InferenceConfig
	logger  *zap.Logger
}

// NewInferenceService creates an InferenceService.
func NewInferenceService(factory datasource.Factory, cfg config.InferenceConfig, logger *zap.Logger) InferenceService {
	return &inferenceService{
		factory: factory,
		cfg:     cfg,
		logger:  logger.Named("inference"),
	}
}

func (s *inferenceService) AutoDetect(ctx context.Context, catalog *Catalog, tableIDs []uuid.UUID) ([]*models.RelationshipSuggestion, error) {
	tables := selectTables(catalog, tableIDs)
	if len(tables) < 2 {
		return nil, nil
	}

	persisted := make(map[string]bool, len(catalog.Relationships))
	for _, rel := range catalog.Relationships {
		persisted[rel.CanonicalKey()] = true
	}

	cache, cleanup, err := s.newCache(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Best candidate per canonical key; a later candidate replaces an
	// earlier one only when strictly better.
	best := make(map[string]*models.RelationshipSuggestion)

	for _, from := range tables {
		for _, to := range tables {
			if from.ID == to.ID {
				continue
			}
			for _, fromCol := range from.Columns {
				for _, toCol := range to.Columns {
					suggestion, err := s.assessCandidate(ctx, cache, from, fromCol.Name, to, toCol.Name)
					if err != nil {
						return nil, err
					}
					if suggestion == nil {
						continue
					}

					key := suggestion.CanonicalKey()
					if persisted[key] {
						continue
					}
					if current, ok := best[key]; !ok || betterSuggestion(suggestion, current) {
						best[key] = suggestion
					}
				}
			}
		}
	}

	// Second reduction: several column pairs between the same two tables may
	// all qualify; only the highest-ranked one survives per table pair.
	byTablePair := make(map[string]*models.RelationshipSuggestion, len(best))
	for _, s := range best {
		key := tablePairKey(s.FromTableID, s.ToTableID)
		if current, ok := byTablePair[key]; !ok || betterSuggestion(s, current) {
			byTablePair[key] = s
		}
	}

	suggestions := make([]*models.RelationshipSuggestion, 0, len(byTablePair))
	for _, s := range byTablePair {
		suggestions = append(suggestions, s)
	}

	// Confidence descending; ties break on the canonical key so repeated
	// calls return identical order.
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].CanonicalKey() < suggestions[j].CanonicalKey()
	})

	return suggestions, nil
}

// assessCandidate runs the full pipeline on one ordered column pair and
// returns a suggestion, or nil when the pair does not qualify.
func (s *inferenceService) assessCandidate(ctx context.Context, cache *profileCache, from *models.ModelTable, fromColumn string, to *models.ModelTable, toColumn string) (*models.RelationshipSuggestion, error) {
	evidence := analyzePair(from, fromColumn, to, toColumn)
	if evidence.Strength == namingNone {
		return nil, nil
	}
	if !evidence.TypesCompatible {
		return nil, nil
	}
	if isSharedForeignKey(from, fromColumn, to, toColumn) {
		return nil, nil
	}

	cardinality := evidence.AssumedCardinality
	reasons := append([]string(nil), evidence.Reasons...)

	var overlap *models.OverlapProfile
	if cache != nil && profilable(from) && profilable(to) {
		profiled, o, err := s.profilePair(ctx, cache, from, fromColumn, to, toColumn, cardinality)
		if err != nil {
			return nil, err
		}
		overlap = o
		if overlap != nil {
			// Disjoint value sets disprove the join no matter how good the
			// names look.
			if overlap.OverlapDistinct == 0 {
				return nil, nil
			}
			// An explicit reference pattern outranks uniqueness stats; only
			// weaker naming evidence yields to the profiled cardinality.
			if evidence.Strength != namingStrong {
				cardinality = profiled
			}
			reasons = append(reasons,
				models.ProfileCardinalityReason(cardinality),
				models.OverlapReason(overlap.BestCoverage()))
		}
	}

	confidence := scoreSuggestion(evidence, cardinality, overlap, reasons)
	if confidence < acceptanceThreshold(evidence, cardinality) {
		return nil, nil
	}

	validationStatus := models.ValidationValid
	if cardinality == models.CardinalityNToN {
		validationStatus = models.ValidationInvalid
	}

	return &models.RelationshipSuggestion{
		FromTableID:      from.ID,
		FromColumn:       fromColumn,
		ToTableID:        to.ID,
		ToColumn:         toColumn,
		Type:             cardinality,
		Confidence:       confidence,
		ValidationStatus: validationStatus,
		Reasons:          reasons,
	}, nil
}

// profilePair refines the assumed cardinality using live uniqueness stats
// and measures value overlap.
func (s *inferenceService) profilePair(ctx context.Context, cache *profileCache, from *models.ModelTable, fromColumn string, to *models.ModelTable, toColumn string, assumed string) (string, *models.OverlapProfile, error) {
	fromProfile, err := cache.column(ctx, from, fromColumn)
	if err != nil {
		return "", nil, fmt.Errorf("profiling %s.%s: %w", from.DisplayName, fromColumn, err)
	}
	toProfile, err := cache.column(ctx, to, toColumn)
	if err != nil {
		return "", nil, fmt.Errorf("profiling %s.%s: %w", to.DisplayName, toColumn, err)
	}

	cardinality := assumed
	switch {
	case fromProfile.Unique && toProfile.Unique:
		cardinality = models.Cardinality1To1
	case toProfile.Unique:
		cardinality = models.CardinalityNTo1
	case fromProfile.Unique:
		cardinality = models.Cardinality1ToN
	default:
		cardinality = models.CardinalityNToN
	}

	overlap, err := cache.overlap(ctx, from, fromColumn, to, toColumn)
	if err != nil {
		return "", nil, fmt.Errorf("overlap %s.%s vs %s.%s: %w", from.DisplayName, fromColumn, to.DisplayName, toColumn, err)
	}

	return cardinality, overlap, nil
}

func (s *inferenceService) Validate(ctx context.Context, catalog *Catalog, rel *models.ModelRelationship) (*PairAssessment, error) {
	from := catalog.Table(rel.FromTableID)
	to := catalog.Table(rel.ToTableID)
	if from == nil || to == nil {
		return nil, fmt.Errorf("relationship references a table outside the data model")
	}
	if from.Column(rel.FromColumn) == nil {
		return nil, fmt.Errorf("table %q has no column %q", from.DisplayName, rel.FromColumn)
	}
	if to.Column(rel.ToColumn) == nil {
		return nil, fmt.Errorf("table %q has no column %q", to.DisplayName, rel.ToColumn)
	}

	evidence := analyzePair(from, rel.FromColumn, to, rel.ToColumn)
	cardinality := evidence.AssumedCardinality
	if cardinality == "" {
		// Explicit creations may pair columns naming heuristics would never
		// propose; assume the safe many-to-one shape until profiled.
		cardinality = models.CardinalityNTo1
	}
	reasons := append([]string(nil), evidence.Reasons...)

	var overlap *models.OverlapProfile
	if profilable(from) && profilable(to) {
		cache, cleanup, err := s.newCache(ctx)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		if cache != nil {
			var profiled string
			profiled, overlap, err = s.profilePair(ctx, cache, from, rel.FromColumn, to, rel.ToColumn, cardinality)
			if err != nil {
				return nil, err
			}
			if evidence.Strength != namingStrong {
				cardinality = profiled
			}
			if overlap != nil {
				reasons = append(reasons,
					models.ProfileCardinalityReason(cardinality),
					models.OverlapReason(overlap.BestCoverage()))
			}
		}
	}

	assessment := &PairAssessment{
		Cardinality:      cardinality,
		ValidationStatus: models.ValidationValid,
		Confidence:       scoreSuggestion(evidence, cardinality, overlap, reasons),
		Reasons:          reasons,
	}

	if overlap != nil && overlap.OverlapDistinct == 0 {
		assessment.ValidationStatus = models.ValidationInvalid
		assessment.ValidationReason = "columns share no values; the join would produce no matches"
		assessment.Reasons = append(assessment.Reasons, models.ReasonZeroOverlap)
	}
	if cardinality == models.CardinalityNToN {
		assessment.ValidationStatus = models.ValidationInvalid
		assessment.ValidationReason = models.ReasonManyToMany
	}

	return assessment, nil
}

// newCache builds the per-invocation profiling cache. A missing profiler for
// the engine is not an error; detection then runs on naming evidence alone.
func (s *inferenceService) newCache(ctx context.Context) (*profileCache, func(), error) {
	profiler, err := s.factory.Profiler(ctx, models.EnginePostgres)
	if err != nil {
		s.logger.Debug("Live profiling unavailable", zap.Error(err))
		return nil, func() {}, nil
	}

	cache, err := newProfileCache(profiler, s.cfg.OverlapSampleLimit)
	if err != nil {
		_ = profiler.Close()
		return nil, nil, err
	}
	return cache, func() { _ = profiler.Close() }, nil
}

// profilable reports whether live statistics can be gathered for the table.
func profilable(t *models.ModelTable) bool {
	return t.Engine == models.EnginePostgres && t.RuntimeRef != ""
}

// selectTables filters the catalog to the requested subset, keeping catalog
// order. An empty subset means all tables.
func selectTables(catalog *Catalog, tableIDs []uuid.UUID) []*models.ModelTable {
	if len(tableIDs) == 0 {
		return catalog.Tables
	}
	wanted := make(map[uuid.UUID]bool, len(tableIDs))
	for _, id := range tableIDs {
		wanted[id] = true
	}
	var out []*models.ModelTable
	for _, t := range catalog.Tables {
		if wanted[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// tablePairKey identifies the unordered table pair a suggestion joins.
func tablePairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

// betterSuggestion orders two suggestions competing for the same slot:
// higher confidence wins, then valid over invalid, then an explicit
// reference pattern over weaker signals, then the preferred relationship
// type, then the canonical key as the final deterministic tiebreak.
func betterSuggestion(a, b *models.RelationshipSuggestion) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.ValidationStatus != b.ValidationStatus {
		return a.ValidationStatus == models.ValidationValid
	}
	if sa, sb := hasReferenceSignal(a), hasReferenceSignal(b); sa != sb {
		return sa
	}
	if ra, rb := typePreference(a.Type), typePreference(b.Type); ra != rb {
		return ra < rb
	}
	return a.CanonicalKey() < b.CanonicalKey()
}

func hasReferenceSignal(s *models.RelationshipSuggestion) bool {
	for _, r := range s.Reasons {
		if r == models.ReasonTableReferencePattern {
			return true
		}
	}
	return false
}

// typePreference ranks cardinalities: directional joins are the most
// useful, n-n the least.
func typePreference(cardinality string) int {
	switch cardinality {
	case models.CardinalityNTo1, models.Cardinality1ToN:
		return 0
	case models.Cardinality1To1:
		return 1
	default:
		return 2
	}
}
