package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(New(st))
	t.Cleanup(srv.Close)
	return srv, st
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func seedServer(t *testing.T, st *store.SQLiteStore, contractors ...model.Contractor) {
	t.Helper()
	_, err := st.InsertNew(context.Background(), contractors)
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListContractors(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st,
		model.Contractor{ContractorID: "a", Name: strPtr("Alpha"), City: strPtr("Trenton"), State: strPtr("NJ"), Rating: f64Ptr(4.9)},
		model.Contractor{ContractorID: "b", Name: strPtr("Beta"), City: strPtr("Newark"), State: strPtr("NJ"), Rating: f64Ptr(3.1)},
		model.Contractor{ContractorID: "c", Name: strPtr("Gamma"), City: strPtr("Albany"), State: strPtr("NY"), Rating: f64Ptr(4.0)},
	)

	var body struct {
		Contractors []model.Contractor `json:"contractors"`
		Count       int                `json:"count"`
		Limit       int                `json:"limit"`
	}

	code := getJSON(t, srv.URL+"/contractors", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, 10, body.Limit, "default page limit")

	code = getJSON(t, srv.URL+"/contractors?state=NJ&min_rating=4", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "a", body.Contractors[0].ContractorID)

	code = getJSON(t, srv.URL+"/contractors?order_by=rating&desc=true&limit=2", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "a", body.Contractors[0].ContractorID)
	assert.Equal(t, "c", body.Contractors[1].ContractorID)
}

func TestListContractors_BadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/contractors?min_rating=abc", &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body["error"])

	code = getJSON(t, srv.URL+"/contractors?order_by=insight", &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListContractors_LimitClamped(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st, model.Contractor{ContractorID: "a", Name: strPtr("Alpha")})

	var body struct {
		Limit int `json:"limit"`
	}
	code := getJSON(t, srv.URL+"/contractors?limit=5000", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, body.Limit)
}

func TestGetContractor(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st, model.Contractor{ContractorID: "a", Name: strPtr("Alpha")})

	var c model.Contractor
	code := getJSON(t, srv.URL+"/contractors/a", &c)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Alpha", *c.Name)

	var body map[string]string
	code = getJSON(t, srv.URL+"/contractors/missing", &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "contractor not found", body["error"])
}

func TestReview(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st, model.Contractor{ContractorID: "a", Name: strPtr("Alpha")})

	resp, err := http.Post(srv.URL+"/contractors/a/review", "application/json",
		strings.NewReader(`{"comment":"verified by hand"}`))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	c, err := st.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "verified by hand", c.ManualEvaluationComment)
}

func TestReview_Validation(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st, model.Contractor{ContractorID: "a", Name: strPtr("Alpha")})

	resp, err := http.Post(srv.URL+"/contractors/a/review", "application/json",
		strings.NewReader(`{"comment":"  "}`))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/contractors/a/review", "application/json",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/contractors/missing/review", "application/json",
		strings.NewReader(`{"comment":"x"}`))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st,
		model.Contractor{ContractorID: "a", Name: strPtr("Alpha"), State: strPtr("NJ")},
		model.Contractor{ContractorID: "b", Name: strPtr("Beta"), State: strPtr("NY")},
	)

	resp, err := http.Get(srv.URL + "/export")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two records")
	assert.Equal(t, model.Columns, rows[0])
	assert.Equal(t, "a", rows[1][1])
	assert.Equal(t, "b", rows[2][1])
}

func TestExportCSV_Filtered(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st,
		model.Contractor{ContractorID: "a", Name: strPtr("Alpha"), State: strPtr("NJ")},
		model.Contractor{ContractorID: "b", Name: strPtr("Beta"), State: strPtr("NY")},
	)

	resp, err := http.Get(srv.URL + "/export?state=NJ")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[1][1])
}

func TestStatus(t *testing.T) {
	srv, st := newTestServer(t)
	seedServer(t, st,
		model.Contractor{ContractorID: "a", Name: strPtr("Alpha")},
		model.Contractor{ContractorID: "b", Name: strPtr("Beta")},
	)
	require.NoError(t, st.UpdateInsight(context.Background(), "a", "insight"))

	var status model.PipelineStatus
	code := getJSON(t, srv.URL+"/status", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.PendingInsight)
}
