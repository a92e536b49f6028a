// Package responder turns a triggering message and finalized history into one in-character reply.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"persona-handler/cascade"
	"persona-handler/history"
	"persona-handler/logging"
	"persona-handler/metrics"
	"persona-handler/model"
	"persona-handler/prompts"
	"persona-handler/responselog"
	"persona-handler/sanitize"
	"persona-handler/steps"
)

const (
	knowledgeFmt  = "\n[INFO FROM KNOWLEDGE DB]:\n%s\n"
	oldMemoryFmt  = "\n[OLD MEMORIES]:\n%s\n"
	imageNoteFmt  = "[%s attached an image: %s]"
	categoryFull  = "FULL PROMPT"
	categoryKnown = "INFO FROM KNOWLEDGE DB"
	categoryMem   = "OLD MEMORIES"
	noKnowledge   = "The knowledge database has nothing relevant"
)

// Responder errors
var (
	errBuildPrompt = errors.New("failed to build prompt")
)

// Retriever returns ranked knowledge hits; empty result means nothing relevant
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]steps.Hit, error)
}

// Memory returns texts of prior messages closest to query
type Memory interface {
	Closest(ctx context.Context, chatID int64, query string, n int) ([]string, error)
}

// Toggles enable optional stages
type Toggles struct {
	ImageView bool
	Rephrase  bool
	Knowledge bool
	Memory    bool
	Rewrite   bool
}

// Config is read-only profile slice used by responder
type Config struct {
	BotName     string
	Toggles     Toggles
	Candidates  []string // ordered fallback models for generation
	MemoryCount int

	Personality steps.Config
	Rephrase    steps.Config
	InfoSelect  steps.Config
	ImageView   steps.Config
	Rewrite     steps.Config
}

// Backends serve each step
type Backends struct {
	Personality model.Completer
	Rephrase    model.Completer
	InfoSelect  model.Completer
	Rewrite     model.Completer
	Vision      model.Describer
	Retriever   Retriever
	Memory      Memory
}

// Trigger is message being answered
type Trigger struct {
	ChatID      int64
	Message     history.Snapshot
	Attachments []steps.Attachment
	Restricted  bool
}

// Response of one invocation
type Response struct {
	InvocationID string
	Text         string
	Model        string
	Signals      []steps.Signal
	Failures     []cascade.Failure
	Log          *responselog.Log
}

type Responder struct {
	cfg       Config
	backends  Backends
	sanitizer *sanitize.Sanitizer
	executor  *steps.Executor
	cascade   *cascade.Cascade
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	cfg Config,
	backends Backends,
	sanitizer *sanitize.Sanitizer,
	logger *logging.Logger,
	m *metrics.Metrics,
	now func() time.Time,
) *Responder {
	if now == nil {
		now = time.Now
	}
	if cfg.MemoryCount <= 0 {
		cfg.MemoryCount = 3
	}
	return &Responder{
		cfg:       cfg,
		backends:  backends,
		sanitizer: sanitizer,
		executor:  steps.NewExecutor(logger, m, now),
		cascade:   cascade.New(backends.Personality, logger, m, now),
		logger:    logger,
		metrics:   m,
		now:       now,
	}
}

// CreateResponse runs the pipeline once:
// image view, rephrase and knowledge, memory, prompt, cascade, rewrite, sanitize.
// Only personality prompt building and cascade exhaustion are fatal,
// failed enrichment steps are skipped.
func (r *Responder) CreateResponse(
	ctx context.Context,
	trig Trigger,
	view []history.Snapshot,
) (*Response, error) {
	// Toggles are read once
	toggles := r.cfg.Toggles

	resp := &Response{
		InvocationID: uuid.NewString(),
		Log:          responselog.New(),
	}
	logger := r.logger.With(
		logging.Invocation(resp.InvocationID),
		logging.MessageID(trig.Message.ID),
		logging.HistoryLen(len(view)),
	)

	st := &steps.State{
		BotName:     r.cfg.BotName,
		Now:         r.now(),
		Trigger:     trig.Message,
		History:     view,
		Attachments: trig.Attachments,
		Restricted:  trig.Restricted,
		Log:         resp.Log,
	}
	resp.Log.Note(responselog.CategoryInput, trig.Message.Text)

	// Image view
	var imageNote string
	if toggles.ImageView && r.backends.Vision != nil {
		desc, ok, err := r.executor.Execute(ctx, steps.ImageDescribe{
			Describer: r.backends.Vision, Config: r.cfg.ImageView,
		}, st)
		reportMisconfig(err, logger)
		if ok {
			imageNote = fmt.Sprintf(imageNoteFmt, trig.Message.Nick, desc)
		}
	}
	resp.Signals = st.Signals

	// Rephrase feeds both knowledge and memory lookups
	if toggles.Rephrase && (toggles.Knowledge || toggles.Memory) {
		q, ok, err := r.executor.Execute(ctx, steps.Rephrase{
			Completer: r.backends.Rephrase, Config: r.cfg.Rephrase,
		}, st)
		reportMisconfig(err, logger)
		if ok {
			st.Query = q
		}
	}
	query := st.Query
	if query == "" {
		query = trig.Message.Text
	}

	// Knowledge
	var knowledge string
	if toggles.Knowledge && r.backends.Retriever != nil {
		knowledge = r.retrieveKnowledge(ctx, st, query, logger)
	}

	// Long-term memory
	var oldMemories string
	if toggles.Memory && r.backends.Memory != nil {
		oldMemories = r.recallMemories(ctx, trig.ChatID, st, query, logger)
	}

	// Build prompt
	p, err := r.buildPrompt(st, knowledge, oldMemories, imageNote)
	if err != nil {
		logger.Error("prompt rejected", logging.Err(err))
		return nil, err
	}
	resp.Log.Append(responselog.Entry{Category: categoryFull, Prompt: p.String()})

	// Generate
	res, err := r.cascade.Run(ctx, r.cfg.Candidates, model.NewRequest(
		p, r.cfg.Personality.Model, r.cfg.Personality.Params,
	), resp.Log)
	resp.Failures = res.Failures
	if err != nil {
		logger.Error("generation exhausted", logging.Err(err))
		return resp, err
	}
	resp.Model = res.Model
	text := res.Text

	// Rewrite in voice, draft survives failure
	if toggles.Rewrite && r.backends.Rewrite != nil {
		st.Draft = text
		rewritten, ok, err := r.executor.Execute(ctx, steps.PersonalityRewrite{
			Completer: r.backends.Rewrite, Config: r.cfg.Rewrite,
		}, st)
		reportMisconfig(err, logger)
		if ok {
			text = rewritten
		}
	}

	// Sanitize
	cleaned := r.sanitizer.Apply(sanitize.TrimSpeakerTag(text, r.cfg.BotName))
	if cleaned != text {
		resp.Log.Append(responselog.Entry{
			Category: responselog.CategorySanitize,
			Prompt:   text,
			Response: cleaned,
		})
	}
	resp.Text = cleaned

	logger.Info("response created", logging.Model(resp.Model))
	return resp, nil
}

func (r *Responder) retrieveKnowledge(
	ctx context.Context,
	st *steps.State,
	query string,
	logger *logging.Logger,
) string {
	hits, err := r.backends.Retriever.Retrieve(ctx, query)
	if err != nil {
		err = fmt.Errorf("%w: retrieve: %v", steps.ErrEnrichment, err)
		logger.Warn("knowledge retrieval failed", logging.Err(err))
		st.Log.Note(categoryKnown, err.Error())
		return ""
	}
	st.Hits = hits

	info, ok, err := r.executor.Execute(ctx, steps.RelevantInfo{
		Completer: r.backends.InfoSelect, Config: r.cfg.InfoSelect,
	}, st)
	reportMisconfig(err, logger)
	if !ok {
		st.Log.Note(categoryKnown, noKnowledge)
		return ""
	}

	st.Log.Note(categoryKnown, info)
	return fmt.Sprintf(knowledgeFmt, info)
}

func (r *Responder) recallMemories(
	ctx context.Context,
	chatID int64,
	st *steps.State,
	query string,
	logger *logging.Logger,
) string {
	texts, err := r.backends.Memory.Closest(ctx, chatID, query, r.cfg.MemoryCount)
	if err != nil {
		err = fmt.Errorf("%w: memory: %v", steps.ErrEnrichment, err)
		logger.Warn("memory lookup failed", logging.Err(err))
		st.Log.Note(categoryMem, err.Error())
		return ""
	}

	// Skip memories already visible in history
	visible := make(map[string]struct{}, len(st.History)+1)
	for _, s := range st.History {
		visible[s.Text] = struct{}{}
	}
	visible[st.Trigger.Text] = struct{}{}

	var kept []string
	for _, t := range texts {
		if _, ok := visible[t]; !ok {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	joined := strings.Join(kept, "\n")
	st.Log.Note(categoryMem, joined)
	return fmt.Sprintf(oldMemoryFmt, joined)
}

// Template first, then history oldest first, trigger and image note.
// Only template is substituted so chat text never acts as placeholder.
func (r *Responder) buildPrompt(
	st *steps.State, knowledge string, oldMemories string, imageNote string,
) (prompts.Prompt, error) {
	values := st.Values()
	values[prompts.KeyKnowledge] = knowledge
	values[prompts.KeyOldMemories] = oldMemories

	p, err := r.cfg.Personality.Prompt.Replace(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBuildPrompt, err)
	}

	for _, s := range st.History {
		if s.IsBot {
			p = append(p, prompts.Assistant(s.Text))
		} else {
			p = append(p, prompts.User(s.Text))
		}
	}
	p = append(p, prompts.User(st.Trigger.Text))
	if imageNote != "" {
		p = append(p, prompts.System(imageNote))
	}
	return p, nil
}

// Failed enrichment step is skipped, executor already logged it.
// Missing placeholder in its prompt is profile bug worth an error.
func reportMisconfig(err error, logger *logging.Logger) {
	if errors.Is(err, prompts.ErrPlaceholderMissing) {
		logger.Error("enrichment prompt rejected, step skipped", logging.Err(err))
	}
}
