package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-insights/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func intPtr(i int) *int         { return &i }

func testContractor(id string) model.Contractor {
	return model.Contractor{
		ContractorID:   id,
		Name:           strPtr("Contractor " + id),
		Rating:         f64Ptr(4.2),
		Reviews:        intPtr(37),
		Phone:          strPtr("555-0100"),
		City:           strPtr("Newark"),
		State:          strPtr("NJ"),
		PostalCode:     strPtr("07102"),
		Certifications: []string{"Master Elite"},
		Type:           strPtr("Residential"),
		URL:            strPtr("https://example.com/" + id),
	}
}

func seedContractors(t *testing.T, st *SQLiteStore, ids ...string) {
	t.Helper()
	var batch []model.Contractor
	for _, id := range ids {
		batch = append(batch, testContractor(id))
	}
	_, err := st.InsertNew(context.Background(), batch)
	require.NoError(t, err)
}

// --- InsertNew ---

func TestSQLite_InsertNew_Dedup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Two pages of 10 with one overlapping id yield 19 distinct records.
	var pageA, pageB []model.Contractor
	for i := range 10 {
		pageA = append(pageA, testContractor(fmt.Sprintf("a-%d", i)))
	}
	for i := range 9 {
		pageB = append(pageB, testContractor(fmt.Sprintf("b-%d", i)))
	}
	pageB = append(pageB, testContractor("a-0"))

	statsA, err := st.InsertNew(ctx, pageA)
	require.NoError(t, err)
	assert.Equal(t, 10, statsA.Inserted)
	assert.Equal(t, 0, statsA.Skipped)

	statsB, err := st.InsertNew(ctx, pageB)
	require.NoError(t, err)
	assert.Equal(t, 9, statsB.Inserted)
	assert.Equal(t, 1, statsB.Skipped)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, status.Total)
}

func TestSQLite_InsertNew_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	batch := []model.Contractor{testContractor("x-1"), testContractor("x-2")}

	_, err := st.InsertNew(ctx, batch)
	require.NoError(t, err)

	// Re-running the identical ingestion changes nothing.
	stats, err := st.InsertNew(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 2, stats.Skipped)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Total)
}

func TestSQLite_InsertNew_ReFetchDoesNotUpdateProfile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testContractor("p-1")
	_, err := st.InsertNew(ctx, []model.Contractor{first})
	require.NoError(t, err)

	changed := testContractor("p-1")
	changed.Name = strPtr("Renamed LLC")
	changed.Rating = f64Ptr(1.0)
	_, err = st.InsertNew(ctx, []model.Contractor{changed})
	require.NoError(t, err)

	got, err := st.Get(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Contractor p-1", *got.Name)
	assert.Equal(t, 4.2, *got.Rating)
}

func TestSQLite_InsertNew_QualityCounters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	noName := testContractor("q-1")
	noName.Name = nil
	noRating := testContractor("q-2")
	noRating.Rating = nil
	noPhone := testContractor("q-3")
	noPhone.Phone = nil
	noCerts := testContractor("q-4")
	noCerts.Certifications = nil

	stats, err := st.InsertNew(ctx, []model.Contractor{noName, noRating, noPhone, noCerts, testContractor("q-5")})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Fetched)
	assert.Equal(t, 5, stats.Inserted)
	assert.Equal(t, 1, stats.MissingName)
	assert.Equal(t, 1, stats.MissingRating)
	assert.Equal(t, 1, stats.MissingPhone)
	assert.Equal(t, 1, stats.MissingCertifications)

	// An absent certifications list is stored as "[]", never NULL.
	got, err := st.Get(ctx, "q-4")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Certifications)
}

func TestSQLite_InsertNew_EmptyContractorIDSkipped(t *testing.T) {
	st := newTestSQLiteStore(t)

	c := testContractor("")
	stats, err := st.InsertNew(context.Background(), []model.Contractor{c})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped)
}

// --- Get / List ---

func TestSQLite_Get_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	got, err := st.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_List_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testContractor("f-1")
	a.City = strPtr("Trenton")
	a.Rating = f64Ptr(3.0)
	b := testContractor("f-2")
	b.State = strPtr("NY")
	b.Rating = f64Ptr(4.8)
	b.Certifications = []string{"Certified Plus"}
	c := testContractor("f-3")
	c.Rating = f64Ptr(4.5)
	_, err := st.InsertNew(ctx, []model.Contractor{a, b, c})
	require.NoError(t, err)

	got, err := st.List(ctx, ContractorFilter{City: "Trenton"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f-1", got[0].ContractorID)

	got, err = st.List(ctx, ContractorFilter{State: "NY"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f-2", got[0].ContractorID)

	got, err = st.List(ctx, ContractorFilter{MinRating: f64Ptr(4.0)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.List(ctx, ContractorFilter{MaxRating: f64Ptr(3.5)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = st.List(ctx, ContractorFilter{Certification: "Certified"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f-2", got[0].ContractorID)
}

func TestSQLite_List_OrderAndPagination(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, rating := range []float64{3.0, 5.0, 4.0} {
		c := testContractor(fmt.Sprintf("o-%d", i))
		c.Rating = f64Ptr(rating)
		_, err := st.InsertNew(ctx, []model.Contractor{c})
		require.NoError(t, err)
	}

	got, err := st.List(ctx, ContractorFilter{OrderBy: "rating", OrderDesc: true})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 5.0, *got[0].Rating)
	assert.Equal(t, 3.0, *got[2].Rating)

	got, err = st.List(ctx, ContractorFilter{OrderBy: "rating", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4.0, *got[0].Rating)

	_, err = st.List(ctx, ContractorFilter{OrderBy: "insight; DROP TABLE contractors"})
	require.Error(t, err)
}

// --- Sweep selections and field-scoped writes ---

func TestSQLite_InsightLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "i-1", "i-2")

	pending, err := st.ListInsightPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, st.UpdateInsight(ctx, "i-1", "strong local reputation"))

	pending, err = st.ListInsightPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "i-2", pending[0].ContractorID)

	got, err := st.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "strong local reputation", got.Insight)
}

func TestSQLite_EvaluationSelection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "e-1", "e-2")

	// Nothing to evaluate until an insight exists.
	pending, err := st.ListEvaluationPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, st.UpdateInsight(ctx, "e-1", "insight text"))

	pending, err = st.ListEvaluationPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e-1", pending[0].ContractorID)

	scores := model.InsightScores{Relevance: 5, Actionability: 4, Accuracy: 5, Clarity: 5, Comment: "solid"}
	require.NoError(t, st.UpdateScores(ctx, "e-1", scores))

	pending, err = st.ListEvaluationPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := st.Get(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, 5, *got.RelevanceScore)
	assert.Equal(t, 4, *got.ActionabilityScore)
	assert.Equal(t, "solid", got.EvaluationComment)
}

func TestSQLite_ListLowScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "l-1", "l-2", "l-3")

	require.NoError(t, st.UpdateScores(ctx, "l-1", model.InsightScores{Relevance: 5, Actionability: 2, Accuracy: 5, Clarity: 5}))
	require.NoError(t, st.UpdateScores(ctx, "l-2", model.InsightScores{Relevance: 4, Actionability: 4, Accuracy: 4, Clarity: 4}))
	// l-3 never evaluated; NULL scores do not trigger regeneration.

	low, err := st.ListLowScore(ctx, 2)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "l-1", low[0].ContractorID)
}

func TestSQLite_NarrativeLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "n-1")

	pending, err := st.ListNarrativePending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	for _, n := range model.Narratives {
		require.NoError(t, st.UpdateNarrative(ctx, "n-1", n, "generated "+string(n)))
	}

	pending, err = st.ListNarrativePending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := st.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "generated business_summary", got.BusinessSummary)
	assert.Equal(t, "generated next_action", got.NextAction)

	err = st.UpdateNarrative(ctx, "n-1", model.Narrative("bogus"), "x")
	require.Error(t, err)
}

func TestSQLite_GeocodeLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "g-1", "g-2")

	pending, err := st.ListGeocodePending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, st.UpdateCoordinates(ctx, "g-1", 40.0, -74.0))

	pending, err = st.ListGeocodePending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "g-2", pending[0].ContractorID)

	got, err := st.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, *got.Latitude)
	assert.Equal(t, -74.0, *got.Longitude)
}

func TestSQLite_UpdateManualComment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "m-1")

	require.NoError(t, st.UpdateManualComment(ctx, "m-1", "reviewed, looks good"))

	got, err := st.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "reviewed, looks good", got.ManualEvaluationComment)

	assert.Error(t, st.UpdateManualComment(ctx, "missing", "x"))
}

// --- Status / collection runs ---

func TestSQLite_Status(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedContractors(t, st, "s-1", "s-2", "s-3")

	require.NoError(t, st.UpdateInsight(ctx, "s-1", "insight"))
	require.NoError(t, st.UpdateScores(ctx, "s-1", model.InsightScores{Relevance: 1, Actionability: 3, Accuracy: 3, Clarity: 3}))
	require.NoError(t, st.UpdateCoordinates(ctx, "s-2", 40.0, -74.0))

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 2, status.PendingInsight)
	assert.Equal(t, 0, status.PendingEvaluation)
	assert.Equal(t, 1, status.LowScore)
	assert.Equal(t, 3, status.PendingNarratives)
	assert.Equal(t, 2, status.PendingGeocode)
	assert.Equal(t, 1, status.Geocoded)
}

func TestSQLite_Status_EmptyTable(t *testing.T) {
	st := newTestSQLiteStore(t)
	status, err := st.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.Total)
	assert.Zero(t, status.PendingInsight)
}

func TestSQLite_RecordCollectionRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	finished := time.Now().UTC()
	run := model.CollectionRun{
		ID:          "run-1",
		StartedAt:   finished.Add(-time.Minute),
		FinishedAt:  &finished,
		Fetched:     20,
		Inserted:    19,
		Skipped:     1,
		MissingName: 2,
	}
	require.NoError(t, st.RecordCollectionRun(ctx, run))
}
