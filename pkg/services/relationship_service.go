package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/models"
	"github.com/quarrybi/semantic-engine/pkg/repositories"
)

// CreateRelationshipRequest carries an explicit relationship creation. Type
// and cross-filter direction are optional; inference fills them in.
type CreateRelationshipRequest struct {
	DataModelID uuid.UUID
	FromTableID uuid.UUID
	FromColumn  string
	ToTableID   uuid.UUID
	ToColumn    string

	Type                 string
	CrossFilterDirection string
}

// RelationshipService manages persisted join edges.
type RelationshipService interface {
	// List returns the model's relationships with cardinalities re-validated
	// against current naming analysis, so stale edges surface as invalid
	// instead of breaking plans later.
	List(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelRelationship, error)

	// Create upserts one relationship by canonical key. The pair is
	// validated by inference; a caller-forced n-n type is always stored
	// invalid.
	Create(ctx context.Context, req *CreateRelationshipRequest) (*models.ModelRelationship, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type relationshipService struct {
	relRepo   repositories.RelationshipRepository
	catalog   CatalogService
	inference InferenceService
	logger    *zap.Logger
}

// NewRelationshipService creates a RelationshipService.
func NewRelationshipService(
	relRepo repositories.RelationshipRepository,
	catalog CatalogService,
	inference InferenceService,
	logger *zap.Logger,
) RelationshipService {
	return &relationshipService{
		relRepo:   relRepo,
		catalog:   catalog,
		inference: inference,
		logger:    logger.Named("relationships"),
	}
}

func (s *relationshipService) List(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelRelationship, error) {
	catalog, err := s.catalog.Load(ctx, dataModelID)
	if err != nil {
		return nil, err
	}

	for _, rel := range catalog.Relationships {
		revalidate(catalog, rel)
	}

	return catalog.Relationships, nil
}

// revalidate re-checks an edge against the current catalog by naming
// analysis only; reads must stay cheap, so no live profiling here. A stored
// cardinality that naming analysis now contradicts is refreshed in the
// returned view, except a forced n-n, which stays invalid.
func revalidate(catalog *Catalog, rel *models.ModelRelationship) {
	from := catalog.Table(rel.FromTableID)
	to := catalog.Table(rel.ToTableID)

	switch {
	case from == nil || to == nil:
		rel.ValidationStatus = models.ValidationInvalid
		rel.ValidationReason = "references a table no longer in the data model"
	case from.Column(rel.FromColumn) == nil || to.Column(rel.ToColumn) == nil:
		rel.ValidationStatus = models.ValidationInvalid
		rel.ValidationReason = "references a column no longer present"
	case rel.Type == models.CardinalityNToN:
		rel.ValidationStatus = models.ValidationInvalid
		rel.ValidationReason = models.ReasonManyToMany
	default:
		evidence := analyzePair(from, rel.FromColumn, to, rel.ToColumn)
		if !evidence.TypesCompatible {
			rel.ValidationStatus = models.ValidationInvalid
			rel.ValidationReason = "column types are no longer compatible"
			return
		}
		if evidence.AssumedCardinality != "" && evidence.AssumedCardinality != rel.Type {
			rel.Type = evidence.AssumedCardinality
			rel.ValidationStatus = models.ValidationValid
			rel.ValidationReason = ""
		}
	}
}

func (s *relationshipService) Create(ctx context.Context, req *CreateRelationshipRequest) (*models.ModelRelationship, error) {
	catalog, err := s.catalog.Load(ctx, req.DataModelID)
	if err != nil {
		return nil, err
	}

	rel := &models.ModelRelationship{
		ID:          uuid.New(),
		DataModelID: req.DataModelID,
		FromTableID: req.FromTableID,
		FromColumn:  req.FromColumn,
		ToTableID:   req.ToTableID,
		ToColumn:    req.ToColumn,
	}

	assessment, err := s.inference.Validate(ctx, catalog, rel)
	if err != nil {
		return nil, fmt.Errorf("relationship validation failed: %w", err)
	}

	// The stored cardinality reflects current evidence, not the caller's
	// request. Only an explicit n-n is honored: it means "I know this is
	// many-to-many, mark it non-executable".
	rel.Type = assessment.Cardinality
	if req.Type == models.CardinalityNToN {
		rel.Type = models.CardinalityNToN
	}
	rel.ValidationStatus = assessment.ValidationStatus
	rel.ValidationReason = assessment.ValidationReason

	if rel.Type == models.CardinalityNToN {
		rel.ValidationStatus = models.ValidationInvalid
		rel.ValidationReason = models.ReasonManyToMany
	}

	rel.CrossFilterDirection = req.CrossFilterDirection
	if rel.CrossFilterDirection == "" {
		rel.CrossFilterDirection = models.DefaultCrossFilterDirection(rel.Type)
	}

	if err := s.relRepo.Upsert(ctx, rel); err != nil {
		return nil, err
	}

	s.logger.Info("Relationship upserted",
		zap.String("relationship_id", rel.ID.String()),
		zap.String("type", rel.Type),
		zap.String("validation_status", rel.ValidationStatus))

	return rel, nil
}

func (s *relationshipService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.relRepo.Delete(ctx, id)
}
