package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mcpchat/agent"
	"mcpchat/config"
	"mcpchat/mcp"
	"mcpchat/provider"
	"mcpchat/storage"
	"mcpchat/tokenizer"
)

// summaryTimeout bounds the summary written at exit.
const summaryTimeout = 2 * time.Minute

// loadSettings resolves settings from the root directory and starts logging.
// console selects stderr logging for commands that do not own the terminal.
func loadSettings(console bool) (*config.Settings, func() error, error) {
	settings, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debugFlag {
		settings.Debug = true
	}

	closeLog, err := config.InitLog(config.DebugLogConfig(settings.DataDir(), settings.Debug, console))
	if err != nil {
		return nil, nil, err
	}
	return settings, closeLog, nil
}

// openStore opens the memory database for the conversation commands.
func openStore(settings *config.Settings) (*storage.MemoryStore, error) {
	if !settings.MemoryEnabled {
		return nil, errors.New("memory is disabled (MEMORY_ENABLED=false)")
	}
	if err := settings.EnsureDataDir(); err != nil {
		return nil, err
	}
	return storage.NewMemoryStore(settings.MemoryDBPath)
}

// session is everything one chat needs: the memory store, the tool backends
// and the engine, plus the summary scheduler when enabled.
type session struct {
	settings  *config.Settings
	store     *storage.MemoryStore
	gateway   *mcp.Gateway
	engine    *agent.Engine
	scheduler *agent.SummaryScheduler
	log       zerolog.Logger

	// cancel ends the context the backends were launched with
	cancel context.CancelFunc
}

// openSession connects the tool backends and builds the engine. Backends that
// fail to start are logged and left out. withScheduler starts the periodic
// summary job.
func openSession(settings *config.Settings, withScheduler bool) (*session, error) {
	log := config.Component("session")

	var store *storage.MemoryStore
	if settings.MemoryEnabled {
		var err error
		store, err = openStore(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory: %w", err)
		}
	}

	client, err := provider.NewFromSettings(settings)
	if err != nil {
		closeQuietly(store)
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	prompt, err := settings.SystemPrompt()
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	var counter *tokenizer.Counter
	if settings.TokenUsageEnabled {
		counter = tokenizer.New(settings.TokenizerModel)
		log.Debug().Str("tokenizer", counter.Name()).Bool("exact", counter.Exact()).Msg("[Session] Token counting enabled")
	}

	event := log.Info().Str("model", client.Model()).Str("endpoint", client.BaseURL())
	if store != nil {
		event = event.Str("memory", store.Path())
	}
	event.Msg("[Session] Opening")

	servers, err := config.LoadServers(settings.MCPConfigPath, settings.RootDir)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	// backends keep this context for inbound sampling requests
	ctx, cancel := context.WithCancel(context.Background())

	gw := mcp.NewGateway(mcp.NewSamplingBridge(client, settings.Sampling, counter, settings.TokenUsageEnabled))
	connected, err := gw.Connect(ctx, servers)
	if err != nil {
		log.Warn().Err(err).Msg("[Session] Some tool servers failed to start")
	}
	log.Info().Int("connected", connected).Int("configured", len(servers)).Msg("[Session] Tool servers ready")

	opts := []agent.Option{agent.WithSystemPrompt(prompt)}
	if counter != nil {
		opts = append(opts, agent.WithCounter(counter))
	}
	if store != nil {
		opts = append(opts, agent.WithStore(store))
	}

	s := &session{
		settings: settings,
		store:    store,
		gateway:  gw,
		engine:   agent.NewEngine(settings, client, gw, opts...),
		log:      log,
		cancel:   cancel,
	}

	if withScheduler && store != nil && settings.MemorySummaryEnabled && settings.MemorySummarySchedulerEnabled {
		s.scheduler = agent.NewSummaryScheduler(s.engine, settings.MemorySummaryInterval)
		s.scheduler.Start()
	}

	return s, nil
}

// begin starts the first conversation of the session: a stored one when
// resume is set ("last" picks the most recent), otherwise a new one that is
// saved unless incognito. It returns the conversation title.
func (s *session) begin(ctx context.Context, resume string, incognito bool) (string, error) {
	if resume == "" {
		return "", s.engine.StartConversation(ctx, !incognito)
	}

	if s.store == nil {
		return "", errors.New("cannot resume: memory is disabled")
	}

	id := resume
	if resume == "last" {
		conv, err := s.store.LatestConversation(ctx)
		if errors.Is(err, storage.ErrConversationNotFound) {
			return "", errors.New("no stored conversations to resume")
		}
		if err != nil {
			return "", err
		}
		id = conv.ID
	}

	if err := s.engine.LoadConversation(ctx, id, true); err != nil {
		return "", fmt.Errorf("failed to resume %s: %w", id, err)
	}

	title, err := s.store.GetTitle(ctx, id)
	if err != nil {
		s.log.Debug().Err(err).Str("conversation", id).Msg("[Session] No title")
	}
	return title, nil
}

// Close stops the scheduler, writes a final summary, closes the tool
// backends and the store, in that order.
func (s *session) Close() error {
	var errs []error

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	if err := s.engine.PersistSummary(ctx); err != nil {
		s.log.Warn().Err(err).Msg("[Session] Final summary failed")
		errs = append(errs, err)
	}
	cancel()

	if err := s.gateway.Close(); err != nil {
		errs = append(errs, err)
	}
	s.cancel()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close memory: %w", err))
		}
	}

	return errors.Join(errs...)
}

func closeQuietly(store *storage.MemoryStore) {
	if store != nil {
		store.Close()
	}
}
