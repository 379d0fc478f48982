package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/infrastructure/config"
	"invoicewallet/internal/infrastructure/di"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type globalOptions struct {
	EnvFile        string `long:"env-file" description:"dotenv file loaded before the environment is read" default:".env"`
	SkipMigrations bool   `long:"skip-migrations" description:"do not run schema migrations before the command"`
	Verbose        bool   `short:"v" long:"verbose" description:"log wiring and adapter messages to stderr"`
}

// app builds the container on first use so --help never touches the network or database.
type app struct {
	options   globalOptions
	ctx       context.Context
	out       io.Writer
	container *di.Container
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	application := &app{ctx: ctx, out: out}
	defer application.close()

	parser := flags.NewParser(&application.options, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "invoicectl"
	registerCommands(parser, application)

	_, err := parser.ParseArgs(args)
	return err
}

func (a *app) use() (*di.Container, error) {
	if a.container != nil {
		return a.container, nil
	}

	logger := log.New(io.Discard, "", 0)
	if a.options.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags|log.LUTC)
	}
	if a.options.EnvFile != "" {
		if err := godotenv.Load(a.options.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", a.options.EnvFile, err)
		}
	}

	cfg, cfgErr := config.LoadConfig()
	if cfgErr != nil {
		return nil, fmt.Errorf("config error code=%s message=%s metadata=%v", cfgErr.Code, cfgErr.Message, cfgErr.Metadata)
	}

	container, err := di.Build(a.ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if container.InitializePersistenceUseCase != nil && !a.options.SkipMigrations {
		if appErr := container.InitializePersistenceUseCase.Execute(a.ctx, dto.InitializePersistenceCommand{
			ReadinessTimeout:       cfg.DBReadinessTimeout,
			ReadinessRetryInterval: cfg.DBReadinessRetryInterval,
		}); appErr != nil {
			container.Close()
			return nil, commandError(appErr)
		}
	}

	a.container = &container
	return a.container, nil
}

func (a *app) close() {
	if a.container != nil {
		a.container.Close()
	}
}

func (a *app) print(result any) error {
	encoder := json.NewEncoder(a.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

type appError struct {
	appErr *apperrors.AppError
}

func (e appError) Error() string {
	encoded, err := json.Marshal(map[string]any{"error": e.appErr})
	if err != nil {
		return e.appErr.Code + ": " + e.appErr.Message
	}
	return string(encoded)
}

func commandError(appErr *apperrors.AppError) error {
	if appErr == nil {
		return nil
	}
	return appError{appErr: appErr}
}

// timestamp accepts RFC 3339 or unix seconds on the command line.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalFlag(value string) error {
	trimmed := strings.TrimSpace(value)
	if seconds, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		t.Time = time.Unix(seconds, 0).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return fmt.Errorf("expected RFC 3339 or unix seconds, got %q", value)
	}
	t.Time = parsed.UTC()
	return nil
}

// window supplies --from/--to with a trailing 24h default.
type window struct {
	From *timestamp `long:"from" description:"window start (RFC 3339 or unix seconds); defaults to 24h before --to"`
	To   *timestamp `long:"to" description:"window end (RFC 3339 or unix seconds); defaults to now"`
}

func (w window) bounds(now time.Time) (time.Time, time.Time) {
	to := now.UTC()
	if w.To != nil {
		to = w.To.Time
	}
	from := to.Add(-24 * time.Hour)
	if w.From != nil {
		from = w.From.Time
	}
	return from, to
}
