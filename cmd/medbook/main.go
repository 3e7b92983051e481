package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medbook/internal/booking"
	"medbook/internal/clinicapi"
	"medbook/internal/config"
	"medbook/internal/events"
	"medbook/internal/journal"
	"medbook/internal/metrics"
	"medbook/internal/notify"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const usage = `usage: medbook <command> [flags]

commands:
  book        book an appointment (--patient --doctor --date --time | --form FILE | --interactive)
  batch       book every form of a YAML file (forms: [...])
  slots       list free slots (--date YYYY-MM-DD)
  show        show an appointment (show ID)
  cancel      cancel an appointment (cancel ID)
  reschedule  move an appointment (reschedule ID --date --time)
  dashboard   list appointments (--doctor NAME)
  history     list local booking attempts (--limit N --outcome O --export FILE)
  health      check that the booking service answers
`

// env carries the process streams so commands can be exercised in tests.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zerolog.Logger
	client    *clinicapi.Client
	submitter *booking.Submitter
	journal   *journal.Journal
	registry  *prometheus.Registry
	rdb       *redis.Client
	env       env
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MEDBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	code := run(ctx, os.Args[1:], cfg, &logger, env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, cfg *config.Config, logger *zerolog.Logger, e env) int {
	if len(args) == 0 {
		fmt.Fprint(e.stderr, usage)
		return 1
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(e.stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}

	a, err := newApp(cfg, logger, e)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return 1
	}
	defer a.close()

	if err := cmd(ctx, a, args[1:]); err != nil {
		if err != errReported {
			fmt.Fprintln(e.stderr, "error:", err)
		}
		return 1
	}
	return 0
}

func newApp(cfg *config.Config, logger *zerolog.Logger, e env) (*app, error) {
	a := &app{cfg: cfg, logger: logger, env: e, registry: prometheus.NewRegistry()}
	m := metrics.New(a.registry)

	a.client = clinicapi.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.APITimeout()})
	a.client.UseMetrics(m)
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.client.UseRedisCache(a.rdb, cfg.CacheTTL())
	}

	notifier := notify.Multi{notify.NewConsole(e.stdout, logger)}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram reports disabled")
		} else {
			notifier = append(notifier, tg)
		}
	}

	bus := events.NewEventBus()
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.journal = j
		bus.SubscribeOutcomes(j.HandleEvent)
	}

	a.submitter = booking.NewSubmitter(a.client, notifier)
	a.submitter.UsePublisher(bus)
	a.submitter.UseMetrics(m)
	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close journal")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
