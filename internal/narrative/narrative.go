// Package narrative turns a finished report into a short executive summary
// using Gemini. The numbers are computed upstream; the model only writes
// prose around figures it is given, and is told not to invent any.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/card-analytics/internal/report"
)

// DefaultModelName is the Gemini model used for narrative generation.
const DefaultModelName = "gemini-2.5-flash"

// Generator implements report.Narrator over the GenAI API.
type Generator struct {
	Model string
}

// NewGenerator builds a Generator; an empty model name uses the default.
func NewGenerator(model string) *Generator {
	if model == "" {
		model = DefaultModelName
	}
	return &Generator{Model: model}
}

var _ report.Narrator = (*Generator)(nil)

// Narrate produces a plain-text executive narrative for the report.
func (g *Generator) Narrate(ctx context.Context, r *report.Report) (string, error) {
	payload, err := json.Marshal(kpiDigest(r))
	if err != nil {
		return "", fmt.Errorf("Narrate: marshaling KPI digest: %w", err)
	}

	prompt :=
		"You are a business analyst writing for a credit-card portfolio team.\n\n" +
			"Task:\n" +
			"- Write a short executive narrative (3 to 5 paragraphs) over the attached\n" +
			"  JSON of computed KPIs and summaries.\n" +
			"- Cover overall volume and spend, customer activity, the fraud picture,\n" +
			"  and the monthly trend.\n\n" +
			"Rules:\n" +
			"- Use ONLY the numbers present in the JSON; never invent or extrapolate figures.\n" +
			"- Null values mean the metric is undefined for that row; say so if relevant, never treat null as zero.\n" +
			"- Output plain text only.\n" +
			"- Do NOT wrap the response in code fences.\n" +
			"- Do NOT use Markdown headings or bullet lists.\n"

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Narrate: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{Text: string(payload)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Narrate: generate content: %w", err)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Narrate: empty response from model")
	}
	return text, nil
}

// kpiDigest trims the report to what the narrative needs: headline KPIs,
// category totals and the worst fraud slices. Shipping the full per-customer
// summary would blow the context for nothing.
func kpiDigest(r *report.Report) map[string]interface{} {
	digest := map[string]interface{}{
		"run_id":         r.RunID,
		"as_of":          r.AsOf.String(),
		"business_kpis":  r.KPIs,
		"categories":     r.Categories,
		"fraud_by_hour":  r.Fraud.ByHour,
		"fraud_by_value": r.Fraud.ByAmountBucket,
	}

	// Top fraud categories only; the full merchant list is noise at this level.
	slices := r.Fraud.ByCategory
	if len(slices) > 10 {
		slices = slices[:10]
	}
	digest["fraud_by_category"] = slices

	return digest
}

// cleanModelText strips Markdown fences if the model ignored instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
