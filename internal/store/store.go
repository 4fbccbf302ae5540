package store

import (
	"context"

	"github.com/sells-group/contractor-insights/internal/model"
)

// ContractorFilter specifies criteria for listing and exporting contractors.
type ContractorFilter struct {
	City          string
	State         string
	MinRating     *float64
	MaxRating     *float64
	Certification string // substring match against the serialized list
	OrderBy       string // one of orderColumns; empty = insertion order
	OrderDesc     bool
	Limit         int // clamped to 1..100 for List; 0 = unbounded for export
	Offset        int
}

// orderColumns whitelists the fields a caller may order by.
var orderColumns = map[string]string{
	"rating":     "rating",
	"reviews":    "reviews",
	"name":       "name",
	"city":       "city",
	"state":      "state",
	"updated_at": "updated_at",
	"created_at": "created_at",
}

// OrderColumn resolves an order_by name against the whitelist.
func OrderColumn(name string) (string, bool) {
	col, ok := orderColumns[name]
	return col, ok
}

// Store defines the persistence interface for the contractor pipeline.
// Every derived field has a scoped update so each enrichment job writes only
// the fields it owns.
type Store interface {
	// Ingestion
	InsertNew(ctx context.Context, contractors []model.Contractor) (model.InsertStats, error)
	RecordCollectionRun(ctx context.Context, run model.CollectionRun) error

	// Reads
	Get(ctx context.Context, contractorID string) (*model.Contractor, error)
	List(ctx context.Context, filter ContractorFilter) ([]model.Contractor, error)
	Status(ctx context.Context) (*model.PipelineStatus, error)

	// Sweep selections (pending = NULL or empty string)
	ListInsightPending(ctx context.Context) ([]model.Contractor, error)
	ListEvaluationPending(ctx context.Context) ([]model.Contractor, error)
	ListLowScore(ctx context.Context, threshold int) ([]model.Contractor, error)
	ListNarrativePending(ctx context.Context) ([]model.Contractor, error)
	ListGeocodePending(ctx context.Context) ([]model.Contractor, error)

	// Field-scoped writes
	UpdateInsight(ctx context.Context, contractorID, insight string) error
	UpdateScores(ctx context.Context, contractorID string, scores model.InsightScores) error
	UpdateNarrative(ctx context.Context, contractorID string, field model.Narrative, value string) error
	UpdateCoordinates(ctx context.Context, contractorID string, lat, lng float64) error
	UpdateManualComment(ctx context.Context, contractorID, comment string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// narrativeColumns maps narrative fields to their columns. Updates go through
// this table so no caller-supplied string ever reaches the SQL text.
var narrativeColumns = map[model.Narrative]string{
	model.NarrativeBusinessSummary:    "business_summary",
	model.NarrativeSalesTip:           "sales_tip",
	model.NarrativeRiskAlert:          "risk_alert",
	model.NarrativePrioritySuggestion: "priority_suggestion",
	model.NarrativeNextAction:         "next_action",
}
