package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"product-insights-go/internal/api"
	"product-insights-go/internal/chat"
	"product-insights-go/internal/config"
	"product-insights-go/internal/dataset"
	"product-insights-go/internal/insights"
	"product-insights-go/internal/llm"
	"product-insights-go/internal/logger"
	"product-insights-go/internal/session"
	"product-insights-go/internal/source"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("failed to load configuration")
	}

	log := logger.NewWithOptions(logger.Options{
		Environment: cfg.Server.Environment,
		Level:       cfg.Log.Level,
	})
	log.WithFields(logrus.Fields{
		"service": "product-insights-go",
		"version": session.Version,
		"mode":    cfg.AI.Mode,
	}).Info("starting service")

	catalog := dataset.Default()
	if cfg.Dataset.Path != "" {
		log.WithField("dataset_path", cfg.Dataset.Path).Info("loading dataset")
		catalog, err = dataset.Load(cfg.Dataset.Path, log.Component("dataset"))
		if err != nil {
			log.WithError(err).Fatal("failed to load dataset")
		}
	}

	sess, err := buildSession(cfg, catalog, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess.RefreshAsync(ctx,
		func(snap session.Snapshot) {
			log.WithField("count", len(snap.Recommendations)).Info("initial recommendations loaded")
		},
		func(err error) {
			log.WithError(err).Warn("initial refresh failed")
		},
	)

	router := api.NewServer(sess, log).Router(api.Options{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.WithError(err).Fatal("server terminated")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sess.Reset()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stopped")
}

// buildSession wires both strategy sets so the mode can be switched at
// runtime. The remote set tries endpoint A then endpoint B, each behind its
// own breaker, and falls back to the catalog.
func buildSession(cfg *config.Config, catalog dataset.Catalog, log *logger.Logger) (*session.Session, error) {
	httpOpts := llm.HTTPOptions{
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	}
	breakerCfg := llm.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Cooldown:    cfg.Breaker.Cooldown,
	}
	llmLog := log.Component("llm")

	messages := llm.NewMessagesClient(llm.MessagesConfig{
		BaseURL:   cfg.Anthropic.URL,
		APIKey:    cfg.Anthropic.APIKey,
		Model:     cfg.Anthropic.Model,
		Version:   cfg.Anthropic.Version,
		MaxTokens: cfg.Anthropic.MaxTokens,
		HTTP:      httpOpts,
	})
	completions := llm.NewChatClient(llm.ChatConfig{
		BaseURL:     cfg.OpenAI.URL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		HTTP:        httpOpts,
	})
	breakerA := llm.NewBreaker(messages, breakerCfg, llmLog)
	breakerB := llm.NewBreaker(completions, breakerCfg, llmLog)

	// recommendations try A then B; chat and insights go to B only
	recommendChain := llm.NewChain(llmLog, breakerA, breakerB)
	chatChain := llm.NewChain(llmLog, breakerB)
	llmLog.WithFields(logrus.Fields{
		"recommend_chain": recommendChain.Len(),
		"chat_chain":      chatChain.Len(),
	}).Debug("completer chains built")

	fixture := source.NewFixture(catalog.Recommendations)

	mode, err := session.ParseMode(cfg.AI.Mode)
	if err != nil {
		return nil, err
	}

	return session.New(session.Options{
		Catalog: catalog,
		Strategies: map[session.Mode]session.Strategies{
			session.ModeMock: {
				Source:   fixture,
				Chat:     chat.NewKeyword(),
				Insights: insights.Static{},
			},
			session.ModeRemote: {
				Source:   source.NewRemote(recommendChain, fixture, log.Component("source")),
				Chat:     chat.NewRemote(chatChain, log.Component("chat")),
				Insights: insights.NewRemote(chatChain, insights.Static{}, log.Component("insights")),
			},
		},
		Mode:          mode,
		DefaultUserID: cfg.AI.DefaultUserID,
		Now:           time.Now,
		Log:           log.Entry,
	})
}
