package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

// SweepRegenerations rewrites the insight for every record with any
// evaluation score at or below the threshold. Only the insight is replaced;
// the stale scores stay until the next evaluation pass clears or re-scores
// them.
func (e *Enricher) SweepRegenerations(ctx context.Context) error {
	lowScored, err := e.store.ListLowScore(ctx, e.opts.LowScoreThreshold)
	if err != nil {
		return eris.Wrap(err, "enrich: list low score")
	}

	var processed, failed int
	var usage anthropic.TokenUsage
	for _, c := range lowScored {
		text, u, err := e.complete(ctx, regeneratePrompt(c), e.opts.RegenerateTemp)
		addUsage(&usage, u)
		if err != nil {
			zap.L().Warn("insight regeneration failed",
				zap.String("contractor_id", c.ContractorID),
				zap.String("name", recordName(c.Name)),
				zap.Error(err),
			)
			failed++
			continue
		}

		if err := e.store.UpdateInsight(ctx, c.ContractorID, text); err != nil {
			zap.L().Warn("regenerated insight write failed",
				zap.String("contractor_id", c.ContractorID),
				zap.Error(err),
			)
			failed++
			continue
		}
		processed++
	}

	logSweepDone(JobRegenerate, processed, failed, usage, e.opts.Model)
	return nil
}
