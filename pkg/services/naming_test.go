package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

func tableWithColumns(name string, cols ...models.ModelColumn) *models.ModelTable {
	return &models.ModelTable{
		ID:          uuid.New(),
		DisplayName: name,
		Columns:     cols,
	}
}

func TestTableBaseName(t *testing.T) {
	tests := []struct {
		display string
		want    string
	}{
		{"customers", "customer"},
		{"Customers", "customer"},
		{"public.customers", "customer"},
		{"order_items", "order_item"},
		{"status", "status"},
	}
	for _, tt := range tests {
		got := tableBaseName(&models.ModelTable{DisplayName: tt.display})
		if got != tt.want {
			t.Errorf("tableBaseName(%q) = %q, want %q", tt.display, got, tt.want)
		}
	}
}

func TestForeignKeyBase(t *testing.T) {
	tests := []struct {
		column string
		want   string
	}{
		{"customer_id", "customer"},
		{"account_key", "account"},
		{"country_code", "country"},
		{"session_uuid", "session"},
		{"amount", ""},
		{"_id", ""},
		{"id", ""},
	}
	for _, tt := range tests {
		if got := foreignKeyBase(tt.column); got != tt.want {
			t.Errorf("foreignKeyBase(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}

func TestIsPrimaryKeyShaped(t *testing.T) {
	customers := tableWithColumns("customers")

	if !isPrimaryKeyShaped(customers, "id") {
		t.Error("id should be primary-key shaped")
	}
	if !isPrimaryKeyShaped(customers, "customer_id") {
		t.Error("customer_id on customers should be primary-key shaped")
	}
	if isPrimaryKeyShaped(customers, "order_id") {
		t.Error("order_id on customers should not be primary-key shaped")
	}
	if isPrimaryKeyShaped(customers, "email") {
		t.Error("email should not be primary-key shaped")
	}
}

func TestTypesCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"bigint", "integer", true},
		{"bigint", "INT64", true},
		{"uuid", "text", true},
		{"varchar", "STRING", true},
		{"timestamp", "text", false},
		{"bigint", "text", false},
		{"boolean", "BOOL", true},
		{"jsonb", "bigint", true}, // unknown category passes
	}
	for _, tt := range tests {
		if got := typesCompatible(tt.a, tt.b); got != tt.want {
			t.Errorf("typesCompatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAnalyzePairStrongForeignKey(t *testing.T) {
	orders := tableWithColumns("orders",
		models.ModelColumn{Name: "id", DataType: "bigint"},
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)

	evidence := analyzePair(orders, "customer_id", customers, "id")

	if evidence.Strength != namingStrong {
		t.Errorf("strength = %q, want strong", evidence.Strength)
	}
	if evidence.AssumedCardinality != models.CardinalityNTo1 {
		t.Errorf("cardinality = %q, want n-1", evidence.AssumedCardinality)
	}
	if !evidence.TypesCompatible {
		t.Error("bigint/bigint should be compatible")
	}
	wantReasons := map[string]bool{
		models.ReasonForeignKeyPattern:     true,
		models.ReasonTableReferencePattern: true,
	}
	for _, r := range evidence.Reasons {
		delete(wantReasons, r)
	}
	for missing := range wantReasons {
		t.Errorf("missing reason %q in %v", missing, evidence.Reasons)
	}
}

func TestAnalyzePairWeakForeignKey(t *testing.T) {
	orders := tableWithColumns("orders",
		models.ModelColumn{Name: "owner_id", DataType: "bigint"},
	)
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)

	evidence := analyzePair(orders, "owner_id", customers, "id")

	if evidence.Strength != namingWeak {
		t.Errorf("strength = %q, want weak", evidence.Strength)
	}
	if evidence.AssumedCardinality != models.CardinalityNTo1 {
		t.Errorf("cardinality = %q, want n-1", evidence.AssumedCardinality)
	}
}

func TestAnalyzePairPrimaryKeyPair(t *testing.T) {
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)
	profiles := tableWithColumns("customer_profiles",
		models.ModelColumn{Name: "customer_id", DataType: "bigint"},
	)

	// customer_id is PK-shaped on customers but FK-shaped on customer_profiles,
	// so the FK branch wins and still yields a suggestion.
	evidence := analyzePair(profiles, "customer_id", customers, "customer_id")
	if evidence.Strength == namingNone {
		t.Error("expected naming evidence for matching key columns")
	}
}

func TestAnalyzePairNoEvidence(t *testing.T) {
	orders := tableWithColumns("orders",
		models.ModelColumn{Name: "amount", DataType: "numeric"},
	)
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "email", DataType: "text"},
	)

	evidence := analyzePair(orders, "amount", customers, "email")
	if evidence.Strength != namingNone {
		t.Errorf("strength = %q, want none", evidence.Strength)
	}
}

func TestAnalyzePairTypeMismatch(t *testing.T) {
	orders := tableWithColumns("orders",
		models.ModelColumn{Name: "customer_id", DataType: "timestamp"},
	)
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)

	evidence := analyzePair(orders, "customer_id", customers, "id")
	if evidence.TypesCompatible {
		t.Error("timestamp/bigint must not be compatible")
	}
	found := false
	for _, r := range evidence.Reasons {
		if r == models.ReasonTypeMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("expected type_mismatch reason in %v", evidence.Reasons)
	}
}

func TestIsSharedForeignKeyTenantTrap(t *testing.T) {
	orders := tableWithColumns("orders",
		models.ModelColumn{Name: "tenant_id", DataType: "uuid"},
	)
	invoices := tableWithColumns("invoices",
		models.ModelColumn{Name: "tenant_id", DataType: "uuid"},
	)

	if !isSharedForeignKey(orders, "tenant_id", invoices, "tenant_id") {
		t.Error("two tables sharing tenant_id should be flagged as a shared FK")
	}

	// A genuine FK into the other table is not a shared-FK situation.
	customers := tableWithColumns("customers",
		models.ModelColumn{Name: "id", DataType: "bigint"},
	)
	if isSharedForeignKey(orders, "customer_id", customers, "id") {
		t.Error("customer_id -> customers.id must not be flagged")
	}
}
