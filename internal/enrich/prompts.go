package enrich

import (
	"fmt"

	"github.com/sells-group/contractor-insights/internal/model"
)

const insightTemplate = `Based on the following contractor information, generate a concise, professional sales insight in English. Highlight their strengths, potential value, and possible sales approaches.
Company Name: %s
Rating: %s
Reviews: %s
Phone: %s
City: %s
State: %s
Postal Code: %s
Certifications: %s
Type: %s`

const regenerateTemplate = `Based on the following contractor information, generate a concise, actionable, and differentiated sales insight in English. Avoid generic statements and focus on unique value or opportunities for engagement.
Company Name: %s
Rating: %s
Reviews: %s
Phone: %s
City: %s
State: %s
Postal Code: %s
Certifications: %s
Type: %s`

const evaluationTemplate = `You are a sales enablement expert. Please evaluate the following AI-generated sales insight for a contractor based on the contractor's information. Score the insight on a scale of 1-5 for each of the following criteria: relevance, actionability, accuracy, and clarity. Also, provide a brief comment.
Contractor Info: %s
AI Insight: %s
Respond in valid JSON format, use double quotes for all keys and string values, and do not include trailing commas.
Example:
{"relevance": 5, "actionability": 4, "accuracy": 5, "clarity": 5, "comment": "This insight is actionable and relevant."}`

// narrativeTemplates holds the per-field prompt preambles. Each narrative
// prompt appends the same short profile block.
var narrativeTemplates = map[model.Narrative]string{
	model.NarrativeBusinessSummary:    "Given the following contractor data, summarize their business scale and activity level. Highlight any recent major projects or news if available.",
	model.NarrativeSalesTip:           "Based on this contractor's profile, generate a personalized sales talking point and a recommended opening line for a sales call.",
	model.NarrativeRiskAlert:          "Analyze the contractor's recent ratings and reviews. If there are negative trends or risks, summarize them and suggest how a sales rep should address them.",
	model.NarrativePrioritySuggestion: "Given the contractor's data, rate how high a priority they should be for sales outreach (High/Medium/Low) and explain why.",
	model.NarrativeNextAction:         "Based on the contractor's profile, recommend the next best action for a sales rep (e.g., call, email, send brochure) and the best time to contact.",
}

const narrativeProfileTemplate = `
Company Name: %s
Rating: %s
Reviews: %s
City: %s
State: %s
Certifications: %s
Type: %s`

// profile is the prompt-ready view of a contractor: missing fields render as
// "N/A" except the name, which renders empty.
type profile struct {
	name           string
	rating         string
	reviews        string
	phone          string
	city           string
	state          string
	postalCode     string
	certifications string
	typ            string
}

func buildProfile(c model.Contractor) profile {
	certs := "N/A"
	if len(c.Certifications) > 0 {
		certs = model.EncodeCertifications(c.Certifications)
	}
	return profile{
		name:           strOr(c.Name, ""),
		rating:         floatOrNA(c.Rating),
		reviews:        intOrNA(c.Reviews),
		phone:          strOr(c.Phone, "N/A"),
		city:           strOr(c.City, "N/A"),
		state:          strOr(c.State, "N/A"),
		postalCode:     strOr(c.PostalCode, "N/A"),
		certifications: certs,
		typ:            strOr(c.Type, "N/A"),
	}
}

func insightPrompt(c model.Contractor) string {
	p := buildProfile(c)
	return fmt.Sprintf(insightTemplate,
		p.name, p.rating, p.reviews, p.phone, p.city, p.state, p.postalCode, p.certifications, p.typ)
}

func regeneratePrompt(c model.Contractor) string {
	p := buildProfile(c)
	return fmt.Sprintf(regenerateTemplate,
		p.name, p.rating, p.reviews, p.phone, p.city, p.state, p.postalCode, p.certifications, p.typ)
}

func evaluationPrompt(c model.Contractor) string {
	p := buildProfile(c)
	info := fmt.Sprintf("Name: %s, Rating: %s, Reviews: %s, Phone: %s, City: %s, State: %s, Postal Code: %s, Certifications: %s, Type: %s",
		p.name, p.rating, p.reviews, p.phone, p.city, p.state, p.postalCode, p.certifications, p.typ)
	return fmt.Sprintf(evaluationTemplate, info, c.Insight)
}

func narrativePrompt(n model.Narrative, c model.Contractor) string {
	p := buildProfile(c)
	return narrativeTemplates[n] + fmt.Sprintf(narrativeProfileTemplate,
		p.name, p.rating, p.reviews, p.city, p.state, p.certifications, p.typ)
}

func strOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func floatOrNA(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *f)
}

func intOrNA(i *int) string {
	if i == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *i)
}
