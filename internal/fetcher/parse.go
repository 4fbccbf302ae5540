package fetcher

import (
	"strconv"
	"strings"

	"github.com/sells-group/contractor-insights/internal/model"
)

// Parse maps one raw page onto canonical contractor records. A missing raw
// attribute maps to nil, never to a parse failure.
func Parse(page RawPage) []model.Contractor {
	out := make([]model.Contractor, 0, len(page.Results))
	for _, hit := range page.Results {
		c := model.Contractor{
			Name:           cleanName(hit.Title),
			Rating:         rawFloat(hit.Raw, "gaf_rating"),
			Reviews:        rawInt(hit.Raw, "gaf_number_of_reviews"),
			Phone:          rawString(hit.Raw, "gaf_phone"),
			City:           rawString(hit.Raw, "gaf_f_city"),
			State:          rawString(hit.Raw, "gaf_f_state_code"),
			PostalCode:     rawString(hit.Raw, "gaf_postal_code"),
			Certifications: rawStrings(hit.Raw, "gaf_f_contractor_certifications_and_awards"),
			Type:           rawString(hit.Raw, "gaf_contractor_type"),
		}
		if id := rawString(hit.Raw, "gaf_contractor_id"); id != nil {
			c.ContractorID = *id
		}
		if hit.URI != "" {
			uri := hit.URI
			c.URL = &uri
		}
		out = append(out, c)
	}
	return out
}

// cleanName trims surrounding whitespace; a name that is empty after the trim
// is recorded as nil and feeds the data-quality counter at insert time.
func cleanName(title string) *string {
	name := strings.TrimSpace(title)
	if name == "" {
		return nil
	}
	return &name
}

func rawString(bag map[string]any, key string) *string {
	v, ok := bag[key]
	if !ok || v == nil {
		return nil
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil
		}
		return &s
	case float64:
		formatted := strconv.FormatFloat(s, 'f', -1, 64)
		return &formatted
	}
	return nil
}

func rawFloat(bag map[string]any, key string) *float64 {
	v, ok := bag[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func rawInt(bag map[string]any, key string) *int {
	f := rawFloat(bag, key)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// rawStrings reads a multivalue attribute. Coveo returns these either as an
// array or as a single semicolon-separated string.
func rawStrings(bag map[string]any, key string) []string {
	v, ok := bag[key]
	if !ok || v == nil {
		return nil
	}
	switch vals := v.(type) {
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vals == "" {
			return nil
		}
		parts := strings.Split(vals, ";")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
