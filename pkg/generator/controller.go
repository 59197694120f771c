// Package generator turns refined analytical questions into validated
// warehouse queries through a bounded generate/validate/retry loop.
package generator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/golden"
	"github.com/emsight-ai/emsight-engine/pkg/schema"
	"github.com/emsight-ai/emsight-engine/pkg/semantics"
	"github.com/emsight-ai/emsight-engine/pkg/sql"
)

const (
	// DefaultMaxRetries is how many regeneration attempts follow the
	// initial one, so DefaultMaxRetries+1 completion calls at most.
	DefaultMaxRetries = 2

	// exampleThreshold is stricter than the retrieval default: a pattern
	// injected into the prompt must be a near match, not merely related.
	exampleThreshold = 0.75
)

// Result is the outcome of one Generate call. Violations is non-empty only
// when every attempt failed validation and the last candidate is returned
// degraded.
type Result struct {
	SQL        string
	Violations []sql.Violation
	Attempts   int
}

// Controller orchestrates golden-example retrieval, prompt assembly,
// completion, rewriting, and validation.
type Controller struct {
	client     llmClient
	store      *golden.Store
	validator  *sql.Validator
	rewriter   *sql.Rewriter
	compressor *semantics.SectionCompressor
	metadata   *schema.Metadata
	logger     *zap.Logger

	maxRetries int
	rowLimit   int
	now        func() time.Time
}

// llmClient is the completion capability the controller needs.
type llmClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithMaxRetries overrides the retry bound.
func WithMaxRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

// WithRowLimit overrides the appended LIMIT value.
func WithRowLimit(n int) Option {
	return func(c *Controller) { c.rowLimit = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController wires the generation pipeline. The golden store may be nil,
// which disables example injection.
func NewController(
	client llmClient,
	store *golden.Store,
	validator *sql.Validator,
	compressor *semantics.SectionCompressor,
	metadata *schema.Metadata,
	logger *zap.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		client:     client,
		store:      store,
		validator:  validator,
		rewriter:   sql.NewRewriter(logger),
		compressor: compressor,
		metadata:   metadata,
		logger:     logger.Named("generator"),
		maxRetries: DefaultMaxRetries,
		rowLimit:   sql.DefaultRowLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate produces a query for the question. contextEntities, when
// non-empty, scope the query to entities from the previous result. A
// transport failure aborts; validation failure never does: once attempts
// are exhausted the last candidate is returned with its violations.
func (c *Controller) Generate(ctx context.Context, question string, contextEntities []string) (Result, error) {
	example := c.lookupExample(ctx, question)

	var (
		lastSQL        string
		lastViolations []sql.Violation
		retryFeedback  string
	)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("regenerating with feedback",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries))
		} else {
			c.logger.Info("generating query", zap.String("model", c.client.Model()))
		}

		prompt := buildPrompt(promptInput{
			question:        question,
			contextEntities: contextEntities,
			criticalRules:   c.compressor.CriticalRules(question),
			example:         example,
			rulesDoc:        c.compressor.Compress(question),
			schemaContext:   c.metadata.BuildPromptContext(),
			retryFeedback:   retryFeedback,
			now:             c.now(),
		})

		raw, err := c.client.Complete(ctx, prompt)
		if err != nil {
			return Result{}, fmt.Errorf("completion failed: %w", err)
		}

		candidate := sql.ExtractStatement(raw, c.rowLimit)
		candidate = c.rewriter.Refine(candidate)

		violations := c.validator.Validate(candidate, question)
		lastSQL, lastViolations = candidate, violations

		if len(violations) == 0 {
			if attempt > 0 {
				c.logger.Info("corrected query generated on retry",
					zap.Int("attempt", attempt))
			}
			return Result{SQL: candidate, Attempts: attempt + 1}, nil
		}

		c.logger.Warn("validation failed",
			zap.Int("violations", len(violations)),
			zap.Strings("rules", sql.RuleNames(violations)))

		retryFeedback = sql.BuildRetryPromptAddition(violations)
	}

	// Degraded: let execution surface whatever the violations imply.
	c.logger.Error("max retries reached, returning last candidate",
		zap.String("question", question),
		zap.Strings("rules", sql.RuleNames(lastViolations)))
	return Result{SQL: lastSQL, Violations: lastViolations, Attempts: c.maxRetries + 1}, nil
}

func (c *Controller) lookupExample(ctx context.Context, question string) *golden.Match {
	if c.store == nil {
		return nil
	}
	matches, err := c.store.FindSimilar(ctx, question, 1, exampleThreshold)
	if err != nil {
		c.logger.Warn("golden lookup failed", zap.Error(err))
		return nil
	}
	if len(matches) == 0 {
		return nil
	}
	c.logger.Info("golden example found",
		zap.Float64("similarity", matches[0].Score))
	return &matches[0]
}
