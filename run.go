package main

import (
	"context"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"persona-handler/bot"
	"persona-handler/conf"
	"persona-handler/history"
	"persona-handler/knowledge"
	"persona-handler/logging"
	"persona-handler/messaging"
	"persona-handler/metrics"
	"persona-handler/model"
	"persona-handler/ratelimit"
	"persona-handler/responder"
	"persona-handler/responselog"
	"persona-handler/secret"
	"persona-handler/server"
	"persona-handler/steps"
	"persona-handler/translator"
)

const (
	updatesTimeout = 60
	memoryTable    = "persona_memory"
)

// Runs bot until context is done
func run(ctx context.Context, env conf.Env, logger *logging.Logger) error {
	profile := conf.MustLoadProfile(env.ProfilePath, logger)
	token := secret.MustLoadBotToken(logger)

	if err := tg.SetLogger(logger.With(logging.Component("telegram"))); err != nil {
		logger.Warn("failed to route telegram logs", logging.Err(err))
	}

	api, err := tg.NewBotAPI(token)
	if err != nil {
		logger.Error("failed to connect to Telegram", logging.Err(err))
		return err
	}
	self := messaging.NewSelf(api.Self, profile.Options.BotName)
	logger = logger.With(logging.BotName(self.UserName))
	logger.Info("authorized")

	// Restore finalized histories
	histories, err := history.Load(env.HistoryPath, profile.Options.HistoryLength)
	if err != nil {
		logger.Warn("starting with empty history",
			logging.Err(err), logging.Path(env.HistoryPath),
		)
		histories = history.NewStore(profile.Options.HistoryLength)
	}
	logger.Info("history loaded", logging.Chats(len(histories.Chats())))

	m := metrics.New()
	backends, closeStores, err := newBackends(ctx, env, profile, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	sanitizer, err := profile.Sanitizer()
	if err != nil {
		return err
	}
	resp := responder.New(
		profile.ResponderConfig(), backends, sanitizer, logger, m, nil,
	)

	tr, err := translator.New(profile.Options.TranslateTo, nil)
	if err != nil {
		logger.Warn("translation disabled", logging.Err(err))
	}

	logs := responselog.NewCache(profile.Options.LogCapacity)
	limiter := ratelimit.New(nil, profile.Windows()...)
	deps := bot.Deps{
		API:       api,
		Self:      self,
		Profile:   profile,
		Histories: histories,
		Responder: resp,
		Admitter: messaging.NewAdmitter(
			limiter, profile.Options.MaxMessageChars, profile.IsAllowed,
		),
		Logs:    logs,
		Metrics: m,
		Logger:  logger,
	}
	if tr != nil {
		deps.Translator = tr
	}
	if mem, ok := backends.Memory.(bot.Memorizer); ok && profile.Options.EnableMemory {
		deps.Memory = mem
	}
	b := bot.New(deps)

	u := tg.NewUpdate(0)
	u.Timeout = updatesTimeout
	updates := api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Start(gctx, updates)
		return nil
	})
	g.Go(func() error {
		histories.Saver(gctx, env.HistoryPath, env.SaveInterval, logger)
		return nil
	})
	g.Go(func() error {
		h := server.NewHandler(histories, logs, m, logger)
		return server.New(env.OpsAddr, h, logger).Run(gctx)
	})

	<-gctx.Done()
	logger.Info("shutting down")
	api.StopReceivingUpdates()

	err = g.Wait()
	logger.Info("shut down gracefully")
	return err
}

// Builds per-step model clients, knowledge index and long-term memory.
// Returned func closes opened stores.
func newBackends(
	ctx context.Context, env conf.Env, p *conf.Profile, logger *logging.Logger,
) (responder.Backends, func(), error) {
	timeout := p.Options.RequestTimeout.Std()
	client := func(step string) *model.Client {
		pr, _ := p.Provider(step)
		return model.NewClient(pr.APIBase, pr.APIKey, timeout, logger.With(logging.Step(step)))
	}

	b := responder.Backends{
		Personality: client(steps.NamePersonality),
		Rephrase:    client(steps.NameRephrase),
		InfoSelect:  client(steps.NameInfoSelect),
		Rewrite:     client(steps.NamePersonalityRewrite),
		Vision:      client(steps.NameImageView),
	}
	closeStores := func() {}

	o := p.Options
	if !o.EnableKnowledge && !o.EnableMemory {
		return b, closeStores, nil
	}
	embedder := client(conf.EmbeddingsKey).
		WithEmbeddingModel(p.RequestParams[conf.EmbeddingsKey].ModelName)

	if o.EnableKnowledge {
		idx := knowledge.NewIndex(embedder, knowledge.NewMemoryStore(), o.KnowledgeLimit, logger)
		if env.KnowledgeDir != "" {
			start := time.Now()
			if _, err := idx.IndexFolder(ctx, env.KnowledgeDir); err != nil {
				logger.Error("failed to index knowledge",
					logging.Err(err), logging.Path(env.KnowledgeDir),
				)
				return b, closeStores, err
			}
			logger.Debug("indexing took", logging.Duration(time.Since(start)))
		}
		b.Retriever = idx
	}

	if o.EnableMemory {
		var store knowledge.VectorStore = knowledge.NewMemoryStore()
		if env.DatabaseURL != "" {
			pg, err := knowledge.OpenPGStore(ctx, env.DatabaseURL, memoryTable, o.EmbeddingsLength)
			if err != nil {
				logger.Error("failed to open memory store", logging.Err(err))
				return b, closeStores, err
			}
			closeStores = func() {
				if err := pg.Close(); err != nil {
					logger.Warn("failed to close memory store", logging.Err(err))
				}
			}
			store = pg
			logger.Info("long-term memory in postgres")
		}
		b.Memory = knowledge.NewLongTermMemory(embedder, store)
	}

	return b, closeStores, nil
}
