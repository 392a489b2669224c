package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/internal/config"
	"github.com/goliatone/go-business/internal/movies"
	"github.com/goliatone/go-business/pkg/activity"
	"github.com/goliatone/go-business/pkg/filter"
	"github.com/goliatone/go-business/pkg/store/boltstore"
	"github.com/goliatone/go-business/pkg/store/memory"
	"github.com/goliatone/go-business/pkg/store/sqlstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// app is the state one command invocation works with.
type app struct {
	movies *movies.Business
	params business.Params
	logger *slog.Logger
	close  func() error
}

// withApp opens the configured store, runs fn and closes the store again.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), o.config, cmd.ErrOrStderr(), o.Verbose)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}()
	return fn(a)
}

func openApp(ctx context.Context, cfg *config.Config, errOut io.Writer, verbose bool) (*app, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	evaluator, err := newEvaluator(cfg.Evaluator)
	if err != nil {
		return nil, err
	}

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var emitter *activity.Emitter
	if cfg.Activity.Enabled {
		emitter = activity.NewEmitter(activity.Hooks{logHook(logger)}, activity.Config{
			Enabled: true,
			Channel: cfg.Activity.Channel,
		})
	}

	b, err := movies.NewBusiness(store,
		movies.WithLogger(logger),
		movies.WithEvaluator(evaluator),
		movies.WithEmitter(emitter),
	)
	if err != nil {
		_ = closer()
		return nil, err
	}

	actor := cfg.Actor
	if actor == "" {
		actor = uuid.NewString()
	}
	logger.Debug("store opened", "driver", cfg.Driver, "table", cfg.Table, "evaluator", evaluator.Engine(), "actor", actor)

	return &app{
		movies: b,
		params: movies.ActorParams(actor, cfg.Tenant),
		logger: logger,
		close:  closer,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (business.Store[*movies.Movie], func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New[*movies.Movie](cfg.Table), noop, nil
	case config.DriverSQLite, config.DriverPostgres:
		store, err := sqlstore.Open[*movies.Movie](ctx, cfg.Driver, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverBolt:
		store, err := boltstore.Open[*movies.Movie](cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

func newEvaluator(engine string) (filter.Evaluator, error) {
	cache := filter.NewProgramCache(0)
	switch engine {
	case "", "expr":
		return filter.NewExpr(filter.ExprWithProgramCache(cache)), nil
	case "cel":
		return filter.NewCEL(filter.CELWithProgramCache(cache)), nil
	case "js":
		if !filter.JSAvailable() {
			return nil, fmt.Errorf("js evaluator requires a build with -tags js_eval")
		}
		return filter.NewJS(filter.JSWithProgramCache(cache)), nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", engine)
	}
}

func logHook(logger *slog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		logger.InfoContext(ctx, "activity",
			"verb", event.Verb,
			"object_type", event.ObjectType,
			"object_id", event.ObjectID,
			"actor", event.ActorID,
			"channel", event.Channel,
		)
		return nil
	})
}
