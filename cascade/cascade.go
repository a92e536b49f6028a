// Package cascade tries candidate models in order until one produces text.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"persona-handler/logging"
	"persona-handler/metrics"
	"persona-handler/model"
	"persona-handler/responselog"
	"persona-handler/sanitize"
)

// Cascade errors
var (
	ErrGenerationExhausted = errors.New("[cascade] generation exhausted")
	errEmptyCompletion     = errors.New("empty completion")
)

// Failure is one failed candidate
type Failure struct {
	Model string
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Model, f.Err)
}

// ExhaustedError keeps every candidate failure in attempt order
type ExhaustedError struct {
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrGenerationExhausted.Error() + ": no candidates"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return ErrGenerationExhausted.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() error {
	return ErrGenerationExhausted
}

// Result of successful run
type Result struct {
	Text     string
	Model    string
	Failures []Failure
}

type Cascade struct {
	completer model.Completer
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	completer model.Completer,
	logger *logging.Logger,
	m *metrics.Metrics,
	now func() time.Time,
) *Cascade {
	if now == nil {
		now = time.Now
	}
	return &Cascade{
		completer: completer,
		logger:    logger,
		metrics:   m,
		now:       now,
	}
}

// Run attempts candidates sequentially with identical requests except model.
// Reasoning blocks are stripped; empty text counts as failure.
func (c *Cascade) Run(
	ctx context.Context,
	candidates []string,
	base model.Request,
	log *responselog.Log,
) (Result, error) {
	var failures []Failure

	for i, name := range candidates {
		attemptLog := c.logger.With(
			logging.Model(name), logging.Attempt(i+1),
		)

		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Model: name, Err: err})
			break
		}

		req := base.WithModel(name)
		start := c.now()
		text, err := c.completer.Complete(ctx, req)
		elapsed := c.now().Sub(start)

		if err == nil {
			text = sanitize.TrimThinking(text)
			if text == "" {
				err = errEmptyCompletion
				c.metrics.Attempt(name, metrics.OutcomeEmpty)
			}
		} else {
			c.metrics.Attempt(name, metrics.OutcomeError)
		}

		if err != nil {
			f := Failure{Model: name, Err: err}
			failures = append(failures, f)
			log.Append(responselog.Entry{
				Category: responselog.CategoryModelFailure,
				Elapsed:  elapsed,
				Response: f.String(),
			})
			attemptLog.Warn(
				"model failed",
				logging.Category(responselog.CategoryModelFailure),
				logging.Duration(elapsed),
				logging.Err(err),
			)
			continue
		}

		c.metrics.Attempt(name, metrics.OutcomeOK)
		log.Append(responselog.Entry{
			Category: responselog.CategoryGeneration + " " + name,
			Elapsed:  elapsed,
			Prompt:   req.Prompt.String(),
			Response: text,
		})
		attemptLog.Debug("model succeeded", logging.Duration(elapsed))

		return Result{Text: text, Model: name, Failures: failures}, nil
	}

	c.metrics.Exhausted()
	return Result{Failures: failures}, &ExhaustedError{Failures: failures}
}
