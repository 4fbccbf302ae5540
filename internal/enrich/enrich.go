// Package enrich runs the LLM enrichment sweeps over stored contractor
// records: sales insights, self-evaluation scoring, low-score regeneration,
// and the extended narrative fields.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/resilience"
	"github.com/sells-group/contractor-insights/internal/store"
	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

// Job names one enrichment sweep.
type Job string

const (
	JobInsight    Job = "insight"
	JobEvaluate   Job = "evaluate"
	JobRegenerate Job = "regenerate"
	JobNarrative  Job = "narrative"
)

// allJobs is the canonical execution order: evaluation needs insights,
// regeneration needs scores.
var allJobs = []Job{JobInsight, JobEvaluate, JobRegenerate, JobNarrative}

// ParseJobs resolves a comma-separated job selection. Empty input selects
// every sweep. Order of execution is always canonical regardless of the
// order given.
func ParseJobs(spec string) ([]Job, error) {
	if strings.TrimSpace(spec) == "" {
		return allJobs, nil
	}

	selected := make(map[Job]bool)
	for _, part := range strings.Split(spec, ",") {
		name := Job(strings.TrimSpace(part))
		switch name {
		case JobInsight, JobEvaluate, JobRegenerate, JobNarrative:
			selected[name] = true
		default:
			return nil, eris.Errorf("enrich: unknown job %q", part)
		}
	}

	var jobs []Job
	for _, j := range allJobs {
		if selected[j] {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// Options tunes the enrichment sweeps.
type Options struct {
	Model             string
	MaxTokens         int64
	InsightTemp       float64
	EvaluateTemp      float64
	RegenerateTemp    float64
	LowScoreThreshold int
	Timeout           time.Duration // per model call
}

// Enricher orchestrates the enrichment sweeps against the store.
type Enricher struct {
	store  store.Store
	client anthropic.Client
	opts   Options
}

// New creates an enricher. Zero option values fall back to the pipeline
// defaults.
func New(st store.Store, client anthropic.Client, opts Options) *Enricher {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 400
	}
	if opts.InsightTemp == 0 {
		opts.InsightTemp = 0.7
	}
	if opts.EvaluateTemp == 0 {
		opts.EvaluateTemp = 0.3
	}
	if opts.RegenerateTemp == 0 {
		opts.RegenerateTemp = 0.9
	}
	if opts.LowScoreThreshold <= 0 {
		opts.LowScoreThreshold = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Enricher{store: st, client: client, opts: opts}
}

// Run executes the selected sweeps in canonical order. A sweep that fails
// outright (store unavailable) aborts the run; per-record failures inside a
// sweep are logged and skipped.
func (e *Enricher) Run(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		jobs = allJobs
	}
	for _, job := range jobs {
		var err error
		switch job {
		case JobInsight:
			err = e.SweepInsights(ctx)
		case JobEvaluate:
			err = e.SweepEvaluations(ctx)
		case JobRegenerate:
			err = e.SweepRegenerations(ctx)
		case JobNarrative:
			err = e.SweepNarratives(ctx)
		}
		if err != nil {
			return eris.Wrapf(err, "enrich: %s sweep", job)
		}
	}
	return nil
}

// complete issues one message request and returns the trimmed text
// response. Transient API failures retry with backoff; the timeout covers
// each individual attempt.
func (e *Enricher) complete(ctx context.Context, prompt string, temperature float64) (string, anthropic.TokenUsage, error) {
	var resp *anthropic.MessageResponse
	err := resilience.Do(ctx, resilience.RetryConfig{}, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()

		var err error
		resp, err = e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.opts.Model,
			MaxTokens: e.opts.MaxTokens,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
			Temperature: &temperature,
		})
		return err
	})
	if err != nil {
		return "", anthropic.TokenUsage{}, err
	}
	return resp.Text(), resp.Usage, nil
}

func addUsage(total *anthropic.TokenUsage, u anthropic.TokenUsage) {
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	total.CacheCreationInputTokens += u.CacheCreationInputTokens
	total.CacheReadInputTokens += u.CacheReadInputTokens
}

func recordName(name *string) string {
	if name == nil {
		return ""
	}
	return *name
}

func logSweepDone(job Job, processed, failed int, usage anthropic.TokenUsage, model string) {
	zap.L().Info("sweep complete",
		zap.String("job", string(job)),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
	)
	usage.LogCost(model, string(job))
}
