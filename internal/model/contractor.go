package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Contractor is the canonical record for one external business entity.
// It is constructed once at the parser boundary; every downstream stage
// works against these named fields rather than re-deriving map views.
//
// Pointer fields are nullable columns. Text fields use "" as the pending
// marker, matching the store's NULL-or-empty selection predicates.
type Contractor struct {
	ID           int64    `json:"id"`
	ContractorID string   `json:"contractor_id"`
	Name         *string  `json:"name"`
	Rating       *float64 `json:"rating"`
	Reviews      *int     `json:"reviews"`
	Phone        *string  `json:"phone"`
	City         *string  `json:"city"`
	State        *string  `json:"state"`
	PostalCode   *string  `json:"postal_code"`

	// Certifications is an ordered list; it serializes to a JSON array and an
	// absent list serializes to "[]", never NULL.
	Certifications []string `json:"certifications"`

	Type *string `json:"type"`
	URL  *string `json:"url"`

	// Derived fields, each owned by exactly one enrichment job.
	Insight            string `json:"insight"`
	RelevanceScore     *int   `json:"relevance_score"`
	ActionabilityScore *int   `json:"actionability_score"`
	AccuracyScore      *int   `json:"accuracy_score"`
	ClarityScore       *int   `json:"clarity_score"`
	EvaluationComment  string `json:"evaluation_comment"`

	// ManualEvaluationComment is the only field mutated from outside the
	// pipeline, via the review endpoint.
	ManualEvaluationComment string `json:"manual_evaluation_comment"`

	BusinessSummary    string `json:"business_summary"`
	SalesTip           string `json:"sales_tip"`
	RiskAlert          string `json:"risk_alert"`
	PrioritySuggestion string `json:"priority_suggestion"`
	NextAction         string `json:"next_action"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InsightScores groups the four self-evaluation criteria with the model's
// free-text comment.
type InsightScores struct {
	Relevance     int    `json:"relevance"`
	Actionability int    `json:"actionability"`
	Accuracy      int    `json:"accuracy"`
	Clarity       int    `json:"clarity"`
	Comment       string `json:"comment"`
}

// Narrative identifies one of the five extended narrative fields.
type Narrative string

const (
	NarrativeBusinessSummary    Narrative = "business_summary"
	NarrativeSalesTip           Narrative = "sales_tip"
	NarrativeRiskAlert          Narrative = "risk_alert"
	NarrativePrioritySuggestion Narrative = "priority_suggestion"
	NarrativeNextAction         Narrative = "next_action"
)

// Narratives lists the extended narrative fields in generation order.
var Narratives = []Narrative{
	NarrativeBusinessSummary,
	NarrativeSalesTip,
	NarrativeRiskAlert,
	NarrativePrioritySuggestion,
	NarrativeNextAction,
}

// NarrativeValue returns the current value of the named narrative field.
func (c *Contractor) NarrativeValue(n Narrative) string {
	switch n {
	case NarrativeBusinessSummary:
		return c.BusinessSummary
	case NarrativeSalesTip:
		return c.SalesTip
	case NarrativeRiskAlert:
		return c.RiskAlert
	case NarrativePrioritySuggestion:
		return c.PrioritySuggestion
	case NarrativeNextAction:
		return c.NextAction
	}
	return ""
}

// SetNarrative writes the named narrative field.
func (c *Contractor) SetNarrative(n Narrative, value string) {
	switch n {
	case NarrativeBusinessSummary:
		c.BusinessSummary = value
	case NarrativeSalesTip:
		c.SalesTip = value
	case NarrativeRiskAlert:
		c.RiskAlert = value
	case NarrativePrioritySuggestion:
		c.PrioritySuggestion = value
	case NarrativeNextAction:
		c.NextAction = value
	}
}

// NarrativesPending reports whether any of the five narrative fields still
// needs generation.
func (c *Contractor) NarrativesPending() bool {
	for _, n := range Narratives {
		if c.NarrativeValue(n) == "" {
			return true
		}
	}
	return false
}

// HasLowScore reports whether any self-evaluation score is at or below the
// regeneration threshold.
func (c *Contractor) HasLowScore(threshold int) bool {
	for _, s := range []*int{c.RelevanceScore, c.ActionabilityScore, c.AccuracyScore, c.ClarityScore} {
		if s != nil && *s <= threshold {
			return true
		}
	}
	return false
}

// ScoresPending reports whether any of the four scores is unset.
func (c *Contractor) ScoresPending() bool {
	return c.RelevanceScore == nil || c.ActionabilityScore == nil ||
		c.AccuracyScore == nil || c.ClarityScore == nil
}

// EncodeCertifications serializes the certifications list. A nil or empty
// list encodes to "[]".
func EncodeCertifications(certs []string) string {
	if len(certs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(certs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeCertifications parses a stored certifications column. Unparsable or
// empty input decodes to an empty list.
func DecodeCertifications(raw string) []string {
	if raw == "" || raw == "[]" {
		return []string{}
	}
	var certs []string
	if err := json.Unmarshal([]byte(raw), &certs); err != nil {
		return []string{}
	}
	return certs
}

// Columns lists the canonical contractor fields in table-definition order.
// The CSV export header is exactly this list.
var Columns = []string{
	"id",
	"contractor_id",
	"name",
	"rating",
	"reviews",
	"phone",
	"city",
	"state",
	"postal_code",
	"certifications",
	"type",
	"url",
	"insight",
	"relevance_score",
	"actionability_score",
	"accuracy_score",
	"clarity_score",
	"evaluation_comment",
	"manual_evaluation_comment",
	"business_summary",
	"sales_tip",
	"risk_alert",
	"priority_suggestion",
	"next_action",
	"latitude",
	"longitude",
}

// CSVRecord projects the contractor onto Columns order. Nullable fields
// render as empty strings.
func (c *Contractor) CSVRecord() []string {
	return []string{
		strconv.FormatInt(c.ID, 10),
		c.ContractorID,
		strDeref(c.Name),
		floatDeref(c.Rating),
		intDeref(c.Reviews),
		strDeref(c.Phone),
		strDeref(c.City),
		strDeref(c.State),
		strDeref(c.PostalCode),
		EncodeCertifications(c.Certifications),
		strDeref(c.Type),
		strDeref(c.URL),
		c.Insight,
		intDeref(c.RelevanceScore),
		intDeref(c.ActionabilityScore),
		intDeref(c.AccuracyScore),
		intDeref(c.ClarityScore),
		c.EvaluationComment,
		c.ManualEvaluationComment,
		c.BusinessSummary,
		c.SalesTip,
		c.RiskAlert,
		c.PrioritySuggestion,
		c.NextAction,
		floatDeref(c.Latitude),
		floatDeref(c.Longitude),
	}
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intDeref(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func floatDeref(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
