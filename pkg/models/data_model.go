package models

import (
	"time"

	"github.com/google/uuid"
)

// Execution engine constants. A ModelTable's data physically lives in exactly
// one engine; the planner never joins across engines in-process.
const (
	EngineBigQuery = "bigquery"
	EnginePostgres = "postgres"
)

// SupportedEngine reports whether the planner knows how to compile for engine.
func SupportedEngine(engine string) bool {
	return engine == EngineBigQuery || engine == EnginePostgres
}

// DataModel is the container for a workspace's semantic layer. Each workspace
// has exactly one default model, created idempotently on first access.
type DataModel struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelColumn is one column of a ModelTable as reported by warehouse sync.
type ModelColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// ModelTable is the semantic layer's view of one physical synced table.
// Instances are immutable once loaded into a catalog snapshot; the catalog is
// reloaded per request.
type ModelTable struct {
	ID            uuid.UUID `json:"id"`
	DataModelID   uuid.UUID `json:"data_model_id"`
	SyncedTableID uuid.UUID `json:"synced_table_id"`
	DisplayName   string    `json:"display_name"`
	DatasetName   string    `json:"dataset_name"`
	SourceType    string    `json:"source_type"`
	Engine        string    `json:"engine"`

	// RuntimeRef is the fully-qualified name usable in a query against the
	// table's engine (e.g. "project.dataset.table" or "schema.table").
	// Empty when sync has not resolved one; such tables are visible for
	// display but not executable.
	RuntimeRef string `json:"runtime_ref"`

	Executable       bool   `json:"executable"`
	ExecutableReason string `json:"executable_reason,omitempty"`

	Columns []ModelColumn `json:"columns"`
}

// Column returns the named column, or nil if the table has no such column.
func (t *ModelTable) Column(name string) *ModelColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
