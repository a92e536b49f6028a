// Package bot connects Telegram updates to the response pipeline.
package bot

import (
	"context"
	"net/http"
	"sync"
	"time"

	"persona-handler/conf"
	"persona-handler/history"
	"persona-handler/logging"
	"persona-handler/messaging"
	"persona-handler/metrics"
	"persona-handler/responder"
	"persona-handler/responselog"
	"persona-handler/translator"
)

// Responder creates one reply per trigger
type Responder interface {
	CreateResponse(
		ctx context.Context, trig responder.Trigger, view []history.Snapshot,
	) (*responder.Response, error)
}

// Memorizer keeps every exchanged message beyond history
type Memorizer interface {
	Memorize(ctx context.Context, chatID int64, s history.Snapshot) error
}

// Translator serves /translate
type Translator interface {
	Translate(ctx context.Context, text string) (translator.Result, error)
}

// Deps of bot; Memory, Translator, Typer, HTTP and Metrics are optional
type Deps struct {
	API        messaging.API
	Self       messaging.Self
	Profile    *conf.Profile
	Histories  *history.Store
	Responder  Responder
	Admitter   *messaging.Admitter
	Logs       *responselog.Cache
	Memory     Memorizer
	Translator Translator
	Typer      *messaging.Typer
	HTTP       *http.Client
	Metrics    *metrics.Metrics
	Logger     *logging.Logger
	Now        func() time.Time
}

type Bot struct {
	api        messaging.API
	self       messaging.Self
	profile    *conf.Profile
	histories  *history.Store
	responder  Responder
	admitter   *messaging.Admitter
	logs       *responselog.Cache
	memory     Memorizer
	translator Translator
	typer      *messaging.Typer
	http       *http.Client
	metrics    *metrics.Metrics
	logger     *logging.Logger
	now        func() time.Time

	// Running update handlers
	wg sync.WaitGroup
}

func New(d Deps) *Bot {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: time.Minute}
	}
	if d.Logs == nil {
		d.Logs = responselog.NewCache(d.Profile.Options.LogCapacity)
	}
	logger := d.Logger.With(logging.BotName(d.Self.UserName))
	if d.Typer == nil {
		d.Typer = messaging.NewTyper(d.API, 0, 0, logger)
	}

	return &Bot{
		api:        d.API,
		self:       d.Self,
		profile:    d.Profile,
		histories:  d.Histories,
		responder:  d.Responder,
		admitter:   d.Admitter,
		logs:       d.Logs,
		memory:     d.Memory,
		translator: d.Translator,
		typer:      d.Typer,
		http:       d.HTTP,
		metrics:    d.Metrics,
		logger:     logger,
		now:        d.Now,
	}
}
