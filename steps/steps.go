// Package steps implements the single-call stages of the response pipeline.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"persona-handler/history"
	"persona-handler/logging"
	"persona-handler/metrics"
	"persona-handler/model"
	"persona-handler/prompts"
	"persona-handler/responselog"
	"persona-handler/sanitize"
)

// Step names as used in profile prompts and request params
const (
	NamePersonality        = "PERSONALITY"
	NamePersonalityRewrite = "PERSONALITY_REWRITE"
	NameRephrase           = "USER_QUERY_REPHRASE"
	NameInfoSelect         = "INFO_SELECT"
	NameImageView          = "IMAGE_VIEW"
)

// NowLayout renders {now}: "February 13, 12:00:00"
const NowLayout = "January 02, 15:04:05"

// Step errors
var (
	ErrEnrichment = errors.New("[steps] enrichment failed")
)

// Signal is user-visible notice raised by step instead of output
type Signal int

const (
	SignalNone Signal = iota
	SignalTooManyAttachments
	SignalRestrictedChannel
)

func (s Signal) String() string {
	switch s {
	case SignalTooManyAttachments:
		return "too_many_attachments"
	case SignalRestrictedChannel:
		return "restricted_channel"
	default:
		return "none"
	}
}

// Attachment of triggering message
type Attachment struct {
	URL         string
	ContentType string
	Filename    string
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

func (a Attachment) IsImage() bool {
	if strings.HasPrefix(a.ContentType, "image/") {
		return true
	}
	name := strings.ToLower(a.Filename)
	if name == "" {
		name = strings.ToLower(a.URL)
	}
	for _, ext := range imageExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Hit is ranked knowledge retrieval result
type Hit struct {
	Text  string
	Score float64
}

// Config is per-step prompt and request parameters
type Config struct {
	Prompt prompts.Prompt
	Model  string
	Params model.Params
}

func (c Config) request(p prompts.Prompt) model.Request {
	return model.NewRequest(p, c.Model, c.Params)
}

// State is shared conversation state of one invocation.
// Steps read it and record their outputs in it.
type State struct {
	BotName     string
	Now         time.Time
	Trigger     history.Snapshot
	History     []history.Snapshot // finalized view, oldest first
	Attachments []Attachment
	Restricted  bool

	Query string
	Hits  []Hit
	Draft string

	Signals []Signal
	Log     *responselog.Log
}

func (st *State) signal(s Signal) {
	st.Signals = append(st.Signals, s)
}

// Values returns placeholder values common to every prompt
func (st *State) Values() map[string]string {
	return map[string]string{
		prompts.KeyNow:     st.Now.Format(NowLayout),
		prompts.KeyNick:    st.Trigger.Nick,
		prompts.KeyBotName: st.BotName,
		prompts.KeyText:    st.Trigger.Text,
		prompts.KeyHistory: st.renderHistory(),
	}
}

// Finalized history followed by trigger
func (st *State) renderHistory() string {
	var sb strings.Builder
	for _, s := range st.History {
		sb.WriteString(s.Text)
		sb.WriteByte('\n')
	}
	if st.Trigger.Text != "" {
		sb.WriteString(st.Trigger.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Outcome of single step run
type outcome struct {
	prompt prompts.Prompt
	text   string
	called bool
}

// Step is closed set: Rephrase, RelevantInfo, ImageDescribe, PersonalityRewrite
type Step interface {
	Name() string
	run(ctx context.Context, st *State) (outcome, error)
}

// Executor times steps and records them in the verbose log
type Executor struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewExecutor(
	logger *logging.Logger, m *metrics.Metrics, now func() time.Time,
) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{logger: logger, metrics: m, now: now}
}

// Execute runs step once.
// Returns ok=false when step produced nothing usable.
// Errors wrap ErrEnrichment together with the cause.
func (e *Executor) Execute(
	ctx context.Context, step Step, st *State,
) (string, bool, error) {
	name := step.Name()
	stepLog := e.logger.With(logging.Step(name))

	start := e.now()
	out, err := step.run(ctx, st)
	elapsed := e.now().Sub(start)

	if !out.called && err == nil {
		stepLog.Debug("step skipped")
		return "", false, nil
	}
	e.metrics.ObserveStep(name, elapsed)

	if err != nil {
		st.Log.Append(responselog.Entry{
			Category: name + " FAILURE",
			Elapsed:  elapsed,
			Prompt:   out.prompt.String(),
			Response: err.Error(),
		})
		stepLog.Warn("step failed", logging.Duration(elapsed), logging.Err(err))
		return "", false, fmt.Errorf("%w: %s: %w", ErrEnrichment, name, err)
	}

	st.Log.Append(responselog.Entry{
		Category: name,
		Elapsed:  elapsed,
		Prompt:   out.prompt.String(),
		Response: out.text,
	})
	stepLog.Debug("step done", logging.Duration(elapsed))

	text := sanitize.TrimThinking(out.text)
	return text, text != "", nil
}

// Fills prompt with common and step specific values
func build(cfg Config, st *State, extra map[string]string) (prompts.Prompt, error) {
	values := st.Values()
	for k, v := range extra {
		values[k] = v
	}
	return cfg.Prompt.Replace(values)
}

// Placeholders returns keys a step supplies to its prompt.
// Unknown step names get common keys only.
func Placeholders(name string) []string {
	keys := []string{
		prompts.KeyNow, prompts.KeyNick, prompts.KeyBotName,
		prompts.KeyText, prompts.KeyHistory,
	}
	switch name {
	case NamePersonality:
		keys = append(keys, prompts.KeyKnowledge, prompts.KeyOldMemories)
	case NameInfoSelect:
		keys = append(keys, prompts.KeyQuery, prompts.KeyHits)
	case NamePersonalityRewrite:
		keys = append(keys, prompts.KeyDraft)
	}
	return keys
}
