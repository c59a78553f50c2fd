package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/apperrors"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// fakeRelationshipRepo keeps relationships in memory keyed by canonical key,
// mirroring the store's upsert semantics.
type fakeRelationshipRepo struct {
	byKey map[string]*models.ModelRelationship
}

func newFakeRelationshipRepo() *fakeRelationshipRepo {
	return &fakeRelationshipRepo{byKey: make(map[string]*models.ModelRelationship)}
}

func (r *fakeRelationshipRepo) GetByDataModel(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelRelationship, error) {
	var out []*models.ModelRelationship
	for _, rel := range r.byKey {
		if rel.DataModelID == dataModelID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *fakeRelationshipRepo) Get(ctx context.Context, id uuid.UUID) (*models.ModelRelationship, error) {
	for _, rel := range r.byKey {
		if rel.ID == id {
			return rel, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRelationshipRepo) Upsert(ctx context.Context, rel *models.ModelRelationship) error {
	key := rel.CanonicalKey()
	if existing, ok := r.byKey[key]; ok {
		rel.ID = existing.ID
		rel.CreatedAt = existing.CreatedAt
	}
	r.byKey[key] = rel
	return nil
}

func (r *fakeRelationshipRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for key, rel := range r.byKey {
		if rel.ID == id {
			delete(r.byKey, key)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func newRelationshipFixture(catalog *Catalog) (RelationshipService, *fakeRelationshipRepo) {
	repo := newFakeRelationshipRepo()
	inference := newTestInference(nil)
	svc := NewRelationshipService(repo, &fakeCatalogService{catalog: catalog}, inference, zap.NewNop())
	return svc, repo
}

func TestCreateRelationshipInfersTypeAndDirection(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	catalog := testCatalog([]*models.ModelTable{orders, customers}, nil)
	svc, _ := newRelationshipFixture(catalog)

	rel, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: orders.ID,
		FromColumn:  "customer_id",
		ToTableID:   customers.ID,
		ToColumn:    "id",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rel.Type != models.CardinalityNTo1 {
		t.Errorf("type = %q, want inferred n-1", rel.Type)
	}
	if rel.CrossFilterDirection != models.CrossFilterSingle {
		t.Errorf("direction = %q, want single", rel.CrossFilterDirection)
	}
	if rel.ValidationStatus != models.ValidationValid {
		t.Errorf("status = %q, want valid", rel.ValidationStatus)
	}
}

func TestCreateRelationshipAssessedTypeOverridesRequest(t *testing.T) {
	// The caller claims 1-1 but the naming shape says n-1; the assessed
	// cardinality is what gets stored.
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	catalog := testCatalog([]*models.ModelTable{orders, customers}, nil)
	svc, _ := newRelationshipFixture(catalog)

	rel, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: orders.ID,
		FromColumn:  "customer_id",
		ToTableID:   customers.ID,
		ToColumn:    "id",
		Type:        models.Cardinality1To1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rel.Type != models.CardinalityNTo1 {
		t.Errorf("type = %q, want the assessed n-1", rel.Type)
	}
	if rel.ValidationStatus != models.ValidationValid {
		t.Errorf("status = %q, want valid", rel.ValidationStatus)
	}
}

func TestCreateRelationshipForcedManyToManyStoredInvalid(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	catalog := testCatalog([]*models.ModelTable{orders, customers}, nil)
	svc, _ := newRelationshipFixture(catalog)

	rel, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: orders.ID,
		FromColumn:  "customer_id",
		ToTableID:   customers.ID,
		ToColumn:    "id",
		Type:        models.CardinalityNToN,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rel.ValidationStatus != models.ValidationInvalid {
		t.Errorf("forced n-n must be stored invalid, got %q", rel.ValidationStatus)
	}
	if rel.ValidationReason != models.ReasonManyToMany {
		t.Errorf("reason = %q", rel.ValidationReason)
	}
}

func TestCreateRelationshipUpsertsByCanonicalKey(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	catalog := testCatalog([]*models.ModelTable{orders, customers}, nil)
	svc, repo := newRelationshipFixture(catalog)

	first, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: orders.ID,
		FromColumn:  "customer_id",
		ToTableID:   customers.ID,
		ToColumn:    "id",
	})
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// Same edge proposed from the opposite direction lands on the same row.
	second, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: customers.ID,
		FromColumn:  "id",
		ToTableID:   orders.ID,
		ToColumn:    "customer_id",
	})
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("reversed creation should converge on one row: %s vs %s", first.ID, second.ID)
	}
	if len(repo.byKey) != 1 {
		t.Errorf("expected 1 stored relationship, got %d", len(repo.byKey))
	}
}

func TestCreateRelationshipRejectsUnknownColumn(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	catalog := testCatalog([]*models.ModelTable{orders, customers}, nil)
	svc, _ := newRelationshipFixture(catalog)

	_, err := svc.Create(context.Background(), &CreateRelationshipRequest{
		DataModelID: catalog.Model.ID,
		FromTableID: orders.ID,
		FromColumn:  "missing",
		ToTableID:   customers.ID,
		ToColumn:    "id",
	})
	if err == nil {
		t.Error("expected an error for an unknown column")
	}
}

func TestListRevalidatesAgainstCurrentCatalog(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)

	stale := &models.ModelRelationship{
		ID:               uuid.New(),
		FromTableID:      orders.ID,
		FromColumn:       "dropped_column",
		ToTableID:        customers.ID,
		ToColumn:         "id",
		Type:             models.CardinalityNTo1,
		ValidationStatus: models.ValidationValid,
	}
	healthy := &models.ModelRelationship{
		ID:               uuid.New(),
		FromTableID:      orders.ID,
		FromColumn:       "customer_id",
		ToTableID:        customers.ID,
		ToColumn:         "id",
		Type:             models.CardinalityNTo1,
		ValidationStatus: models.ValidationValid,
	}
	catalog := testCatalog([]*models.ModelTable{orders, customers},
		[]*models.ModelRelationship{stale, healthy})
	svc, _ := newRelationshipFixture(catalog)

	listed, err := svc.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(listed))
	}

	for _, rel := range listed {
		switch rel.ID {
		case stale.ID:
			if rel.ValidationStatus != models.ValidationInvalid {
				t.Error("edge to a dropped column should list as invalid")
			}
		case healthy.ID:
			if rel.ValidationStatus != models.ValidationValid {
				t.Error("healthy edge should stay valid")
			}
		}
	}
}

func TestListRefreshesContradictedCardinality(t *testing.T) {
	orders := pgTable("orders", "public.orders",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := pgTable("customers", "public.customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)

	// Stored as 1-1 at some point, but the naming shape is the classic
	// fact-to-dimension n-1.
	stored := &models.ModelRelationship{
		ID:               uuid.New(),
		FromTableID:      orders.ID,
		FromColumn:       "customer_id",
		ToTableID:        customers.ID,
		ToColumn:         "id",
		Type:             models.Cardinality1To1,
		ValidationStatus: models.ValidationValid,
	}
	catalog := testCatalog([]*models.ModelTable{orders, customers},
		[]*models.ModelRelationship{stored})
	svc, _ := newRelationshipFixture(catalog)

	listed, err := svc.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(listed))
	}
	if listed[0].Type != models.CardinalityNTo1 {
		t.Errorf("type = %q, want the re-derived n-1", listed[0].Type)
	}
	if listed[0].ValidationStatus != models.ValidationValid {
		t.Errorf("status = %q, want valid", listed[0].ValidationStatus)
	}
}
