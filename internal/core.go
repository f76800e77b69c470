package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/crmdesk/internal/assistant"
	"github.com/starford/crmdesk/internal/fixtures"
	"github.com/starford/crmdesk/internal/source"
	"github.com/starford/crmdesk/internal/store"
)

const fixtureDebounce = 300 * time.Millisecond

// core is the part of the application shared by the HTTP server and the
// stdio MCP server.
type core struct {
	logger   *slog.Logger
	src      source.Source
	memory   *source.Memory
	fixtures *fixtures.Dir
	leads    *store.LeadStore
	messages *store.MessageStore
	registry *assistant.Registry
	closers  []func() error
}

// newCore opens the data source, builds the stores with notifier and runs
// the initial fetch. A failed fetch is logged and leaves the stores empty.
func newCore(ctx context.Context, app *application, logger *slog.Logger, notifier store.Notifier) (*core, error) {
	cfg := app.config
	c := &core{logger: logger}

	if cfg.Source.Fixtures != "" {
		if err := os.MkdirAll(cfg.Source.Fixtures, 0o755); err != nil {
			return nil, fmt.Errorf("create fixtures dir: %w", err)
		}
		dir, err := fixtures.NewDir(cfg.Source.Fixtures)
		if err != nil {
			return nil, fmt.Errorf("open fixtures: %w", err)
		}
		c.fixtures = dir
	}

	if err := c.openSource(ctx, app); err != nil {
		c.close()
		return nil, err
	}

	opts := []store.Option{store.WithLogger(logger)}
	if notifier != nil {
		opts = append(opts, store.WithNotifier(notifier))
	}
	c.leads = store.NewLeads(c.src, opts...)
	c.messages = store.NewMessages(c.src, opts...)

	c.fetch(ctx)

	c.registry = assistant.NewRegistry()
	if err := assistant.RegisterCRM(c.registry, c.leads, c.messages); err != nil {
		c.close()
		return nil, fmt.Errorf("register components: %w", err)
	}
	return c, nil
}

func (c *core) openSource(ctx context.Context, app *application) error {
	if app.source != nil {
		c.src = app.source
		return nil
	}

	set := &fixtures.Set{}
	if c.fixtures != nil {
		loaded, err := c.fixtures.Load()
		if err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
		set = loaded
	}

	switch app.config.Source.Driver {
	case source.DriverSQLite:
		db, err := source.OpenSQLite(app.config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init sqlite source: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		seeded, err := db.SeedIfEmpty(ctx, set)
		if err != nil {
			return fmt.Errorf("seed sqlite source: %w", err)
		}
		if seeded {
			c.logger.Info("sqlite source seeded from fixtures",
				slog.Int("leads", len(set.Leads)),
				slog.Int("messages", len(set.Messages)))
		}
		c.src = db
	default:
		c.memory = source.NewMemory(set)
		c.src = c.memory
	}
	return nil
}

func (c *core) fetch(ctx context.Context) {
	if err := c.leads.FetchLeads(ctx); err != nil {
		c.logger.Warn("initial lead fetch failed", slog.String("error", err.Error()))
	}
	if err := c.messages.FetchMessages(ctx); err != nil {
		c.logger.Warn("initial message fetch failed", slog.String("error", err.Error()))
	}
}

// reloadFixtures reads the fixture directory into the memory source and
// refreshes both stores.
func (c *core) reloadFixtures(ctx context.Context, names []string) {
	set, err := c.fixtures.Load()
	if err != nil {
		c.logger.Error("fixture reload failed", slog.String("error", err.Error()))
		return
	}
	c.memory.Reset(set)
	c.fetch(ctx)
	c.logger.Info("fixtures reloaded",
		slog.Any("files", names),
		slog.Int("leads", len(set.Leads)),
		slog.Int("messages", len(set.Messages)))
}

// watch blocks until ctx is done, reloading fixtures as they change. It
// returns at once when watching does not apply.
func (c *core) watch(ctx context.Context, enabled bool) error {
	if !enabled || c.memory == nil || c.fixtures == nil {
		return nil
	}
	return source.WatchFixtures(ctx, c.fixtures, c.logger, fixtureDebounce, c.reloadFixtures)
}

func (c *core) close() {
	if c.leads != nil {
		c.leads.Close()
	}
	if c.messages != nil {
		c.messages.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
