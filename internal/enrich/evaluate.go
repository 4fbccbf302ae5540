package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

// SweepEvaluations scores every insight that has no evaluation yet. The
// model's response must be valid JSON; a response that fails to parse is
// logged with its raw text and the record is skipped for a later sweep.
// Keys absent from an otherwise valid response score zero.
func (e *Enricher) SweepEvaluations(ctx context.Context) error {
	pending, err := e.store.ListEvaluationPending(ctx)
	if err != nil {
		return eris.Wrap(err, "enrich: list evaluation pending")
	}

	var processed, failed int
	var usage anthropic.TokenUsage
	for _, c := range pending {
		text, u, err := e.complete(ctx, evaluationPrompt(c), e.opts.EvaluateTemp)
		addUsage(&usage, u)
		if err != nil {
			zap.L().Warn("evaluation failed",
				zap.String("contractor_id", c.ContractorID),
				zap.String("name", recordName(c.Name)),
				zap.Error(err),
			)
			failed++
			continue
		}

		scores, err := parseScores(text)
		if err != nil {
			zap.L().Warn("evaluation response not valid JSON",
				zap.String("contractor_id", c.ContractorID),
				zap.String("raw", text),
				zap.Error(err),
			)
			failed++
			continue
		}

		if err := e.store.UpdateScores(ctx, c.ContractorID, scores); err != nil {
			zap.L().Warn("evaluation write failed",
				zap.String("contractor_id", c.ContractorID),
				zap.Error(err),
			)
			failed++
			continue
		}
		processed++
	}

	logSweepDone(JobEvaluate, processed, failed, usage, e.opts.Model)
	return nil
}

// parseScores decodes an evaluation response. Only strict JSON is accepted;
// a leading markdown code fence is stripped first since models wrap JSON in
// fences routinely.
func parseScores(text string) (model.InsightScores, error) {
	var scores model.InsightScores
	if err := json.Unmarshal([]byte(stripFence(text)), &scores); err != nil {
		return model.InsightScores{}, eris.Wrap(err, "enrich: decode scores")
	}
	return scores, nil
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
