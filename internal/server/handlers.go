package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/internal/store"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status(r.Context())
	if err != nil {
		zap.L().Error("status query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status query failed")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// parseFilter builds the store filter from query parameters. Pagination is
// clamped for List; the export handler overrides it afterwards.
func parseFilter(r *http.Request) (store.ContractorFilter, error) {
	q := r.URL.Query()
	filter := store.ContractorFilter{
		City:          q.Get("city"),
		State:         q.Get("state"),
		Certification: q.Get("certification"),
		Limit:         defaultPageLimit,
	}

	for name, dst := range map[string]**float64{
		"min_rating": &filter.MinRating,
		"max_rating": &filter.MaxRating,
	} {
		if raw := q.Get(name); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return filter, eris.Errorf("server: invalid %s %q", name, raw)
			}
			*dst = &f
		}
	}

	if orderBy := q.Get("order_by"); orderBy != "" {
		if _, ok := store.OrderColumn(orderBy); !ok {
			return filter, eris.Errorf("server: invalid order_by %q", orderBy)
		}
		filter.OrderBy = orderBy
		filter.OrderDesc = q.Get("desc") == "true"
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, eris.Errorf("server: invalid limit %q", raw)
		}
		switch {
		case n < 1:
			n = 1
		case n > maxPageLimit:
			n = maxPageLimit
		}
		filter.Limit = n
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, eris.Errorf("server: invalid offset %q", raw)
		}
		filter.Offset = n
	}

	return filter, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
		return
	}

	contractors, err := s.store.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("list query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list query failed")
		return
	}
	if contractors == nil {
		contractors = []model.Contractor{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contractors": contractors,
		"count":       len(contractors),
		"offset":      filter.Offset,
		"limit":       filter.Limit,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	contractorID := chi.URLParam(r, "contractorID")

	c, err := s.store.Get(r.Context(), contractorID)
	if err != nil {
		zap.L().Error("get query failed",
			zap.String("contractor_id", contractorID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "get query failed")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "contractor not found")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	contractorID := chi.URLParam(r, "contractorID")

	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "comment is required")
		return
	}

	c, err := s.store.Get(r.Context(), contractorID)
	if err != nil {
		zap.L().Error("review lookup failed",
			zap.String("contractor_id", contractorID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "review lookup failed")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "contractor not found")
		return
	}

	if err := s.store.UpdateManualComment(r.Context(), contractorID, req.Comment); err != nil {
		zap.L().Error("review write failed",
			zap.String("contractor_id", contractorID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "review write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"contractor_id": contractorID,
	})
}

// handleExport streams the dataset as CSV, honoring the same filters as the
// list endpoint but without pagination.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
		return
	}
	filter.Limit = 0
	filter.Offset = 0

	contractors, err := s.store.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("export query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export query failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="contractors.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(model.Columns); err != nil {
		zap.L().Warn("export header write failed", zap.Error(err))
		return
	}
	for i := range contractors {
		if err := cw.Write(contractors[i].CSVRecord()); err != nil {
			zap.L().Warn("export row write failed", zap.Error(err))
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		zap.L().Warn("export flush failed", zap.Error(err))
	}
}
