package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

// SweepNarratives fills the five extended narrative fields for every record
// with any of them missing. The five generations are independent calls; a
// failed call writes an error placeholder into its field so the record does
// not stay pending forever, while the other four proceed normally.
func (e *Enricher) SweepNarratives(ctx context.Context) error {
	pending, err := e.store.ListNarrativePending(ctx)
	if err != nil {
		return eris.Wrap(err, "enrich: list narrative pending")
	}

	var processed, failed int
	var usage anthropic.TokenUsage
	for _, c := range pending {
		recordFailed := false
		for _, n := range model.Narratives {
			text, u, err := e.complete(ctx, narrativePrompt(n, c), e.opts.InsightTemp)
			addUsage(&usage, u)
			if err != nil {
				zap.L().Warn("narrative generation failed",
					zap.String("contractor_id", c.ContractorID),
					zap.String("name", recordName(c.Name)),
					zap.String("field", string(n)),
					zap.Error(err),
				)
				text = fmt.Sprintf("[Error generating %s: %v]", n, err)
				recordFailed = true
			}

			if err := e.store.UpdateNarrative(ctx, c.ContractorID, n, text); err != nil {
				zap.L().Warn("narrative write failed",
					zap.String("contractor_id", c.ContractorID),
					zap.String("field", string(n)),
					zap.Error(err),
				)
				recordFailed = true
			}
		}
		if recordFailed {
			failed++
		} else {
			processed++
		}
	}

	logSweepDone(JobNarrative, processed, failed, usage, e.opts.Model)
	return nil
}
