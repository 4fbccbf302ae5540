package model

import "time"

// CollectionRun records one ingestion invocation and its data-quality
// counters. Missing profile attributes are tallied here, not treated as
// errors.
type CollectionRun struct {
	ID                    string     `json:"id"`
	StartedAt             time.Time  `json:"started_at"`
	FinishedAt            *time.Time `json:"finished_at"`
	Fetched               int        `json:"fetched"`
	Inserted              int        `json:"inserted"`
	Skipped               int        `json:"skipped"`
	MissingName           int        `json:"missing_name"`
	MissingRating         int        `json:"missing_rating"`
	MissingPhone          int        `json:"missing_phone"`
	MissingCertifications int        `json:"missing_certifications"`
}

// InsertStats summarizes one dedup-insert batch.
type InsertStats struct {
	Fetched               int `json:"fetched"`
	Inserted              int `json:"inserted"`
	Skipped               int `json:"skipped"`
	MissingName           int `json:"missing_name"`
	MissingRating         int `json:"missing_rating"`
	MissingPhone          int `json:"missing_phone"`
	MissingCertifications int `json:"missing_certifications"`
}

// PipelineStatus reports how far each enrichment job has progressed.
type PipelineStatus struct {
	Total             int `json:"total"`
	PendingInsight    int `json:"pending_insight"`
	PendingEvaluation int `json:"pending_evaluation"`
	LowScore          int `json:"low_score"`
	PendingNarratives int `json:"pending_narratives"`
	PendingGeocode    int `json:"pending_geocode"`
	Geocoded          int `json:"geocoded"`
}
