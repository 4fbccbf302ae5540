package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

// SweepInsights generates a sales insight for every record that has none.
// Each record commits independently; a failed generation is logged and
// skipped so the rest of the sweep proceeds.
func (e *Enricher) SweepInsights(ctx context.Context) error {
	pending, err := e.store.ListInsightPending(ctx)
	if err != nil {
		return eris.Wrap(err, "enrich: list insight pending")
	}

	var processed, failed int
	var usage anthropic.TokenUsage
	for _, c := range pending {
		text, u, err := e.complete(ctx, insightPrompt(c), e.opts.InsightTemp)
		addUsage(&usage, u)
		if err != nil {
			zap.L().Warn("insight generation failed",
				zap.String("contractor_id", c.ContractorID),
				zap.String("name", recordName(c.Name)),
				zap.Error(err),
			)
			failed++
			continue
		}

		if err := e.store.UpdateInsight(ctx, c.ContractorID, text); err != nil {
			zap.L().Warn("insight write failed",
				zap.String("contractor_id", c.ContractorID),
				zap.Error(err),
			)
			failed++
			continue
		}
		processed++
	}

	logSweepDone(JobInsight, processed, failed, usage, e.opts.Model)
	return nil
}
