package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/busvision"
	"github.com/sakaguchiii/bus-notification/internal/config"
	"github.com/sakaguchiii/bus-notification/internal/conversation"
	"github.com/sakaguchiii/bus-notification/internal/dedup"
	"github.com/sakaguchiii/bus-notification/internal/domain"
	"github.com/sakaguchiii/bus-notification/internal/metrics"
	"github.com/sakaguchiii/bus-notification/internal/scheduler"
	"github.com/sakaguchiii/bus-notification/internal/stops"
	"github.com/sakaguchiii/bus-notification/internal/store"
	"github.com/sakaguchiii/bus-notification/internal/telegram"
)

type App struct {
	cfg  config.Config
	log  *zap.Logger
	bot  *tgbotapi.BotAPI
	repo store.Repo
	reg  *prometheus.Registry

	sched  *scheduler.Scheduler
	router *telegram.Router
	wg     sync.WaitGroup
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{cfg: cfg, log: log, bot: bot, reg: reg}, nil
}

// build opens the stop directory and wires the monitoring engine.
func (a *App) build(ctx context.Context) error {
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	a.repo = repo

	if a.cfg.StopsFile != "" {
		n, err := store.ImportSeedFile(ctx, repo, a.cfg.StopsFile)
		if err != nil {
			return fmt.Errorf("import %s: %w", a.cfg.StopsFile, err)
		}
		a.log.Info("stops imported", zap.String("file", a.cfg.StopsFile), zap.Int("count", n))
	}

	list, err := repo.ListStops(ctx)
	if err != nil {
		return fmt.Errorf("list stops: %w", err)
	}
	dir, err := stops.NewDirectory(list, a.cfg.MaxCandidates)
	if err != nil {
		return fmt.Errorf("stop directory: %w", err)
	}
	a.log.Info("stop directory ready", zap.Int("stops", dir.Len()))

	client, err := busvision.NewClient(dir, a.log.Named("busvision"), busvision.Options{
		BaseURL:    a.cfg.BusVisionBaseURL,
		Timeout:    a.cfg.FetchTimeout,
		RatePerSec: a.cfg.FetchRatePerSec,
		Burst:      a.cfg.FetchBurst,
		MaxRetries: a.cfg.FetchRetries,
	})
	if err != nil {
		return err
	}

	presets, err := a.cfg.Clocks()
	if err != nil {
		return err
	}

	a.sched = scheduler.New(
		client,
		busvision.Parse,
		dedup.New(a.cfg.DedupSize, a.cfg.DedupTTL),
		telegram.NewSender(a.bot),
		a.log.Named("scheduler"),
		metrics.NewCollector(a.reg),
		scheduler.Options{
			PollInterval:  a.cfg.PollInterval,
			CheckInterval: a.cfg.ActivationCheck,
			Lead:          a.cfg.MonitorLead,
			Tail:          a.cfg.MonitorTail,
		},
	)

	machine := conversation.NewMachine(dir, registrar{a.sched}, a.log.Named("conversation"), conversation.Options{
		Favorites:   a.cfg.FavoriteStops,
		TimePresets: presets,
		Location:    a.cfg.Location(),
	})
	a.router = telegram.NewRouter(a.bot, a.log.Named("telegram"), machine)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting bus-notification",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.cfg.TZ),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.build(ctx); err != nil {
		a.log.Error("init failed", zap.Error(err))
		if a.repo != nil {
			_ = a.repo.Close()
		}
		return err
	}

	updCh, webhookCh, err := a.updates()
	if err != nil {
		_ = a.repo.Close()
		return err
	}

	var decoder UpdateDecoder
	if webhookCh != nil {
		decoder = a.bot
	}
	httpSrv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      routes(a.log, a.reg, a.cfg.WebhookPath, decoder, webhookCh),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.sched.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown(httpSrv, schedDone)
			return nil

		case upd := <-updCh:
			// Per-user ordering is enforced by the conversation machine.
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.router.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// updates starts receiving Telegram updates in the configured mode. In
// webhook mode the returned send side is fed by the HTTP handler.
func (a *App) updates() (tgbotapi.UpdatesChannel, chan tgbotapi.Update, error) {
	if a.cfg.RunMode == "webhook" {
		wh, err := tgbotapi.NewWebhook(a.cfg.WebhookURL)
		if err != nil {
			return nil, nil, fmt.Errorf("webhook config: %w", err)
		}
		if _, err := a.bot.Request(wh); err != nil {
			return nil, nil, fmt.Errorf("set webhook: %w", err)
		}
		ch := make(chan tgbotapi.Update, a.bot.Buffer)
		return ch, ch, nil
	}

	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.log.Warn("delete webhook failed", zap.Error(err))
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return a.bot.GetUpdatesChan(u), nil, nil
}

func (a *App) shutdown(httpSrv *http.Server, schedDone <-chan struct{}) {
	if a.cfg.RunMode != "webhook" {
		a.bot.StopReceivingUpdates()
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	a.wg.Wait()
	<-schedDone
	if a.repo != nil {
		_ = a.repo.Close()
	}
	a.log.Info("stopped")
}

// registrar adapts the scheduler to the conversation machine.
type registrar struct{ s *scheduler.Scheduler }

func (r registrar) Register(ctx context.Context, userID int64, route domain.Route, departure time.Time) (domain.Window, error) {
	j, err := r.s.Register(ctx, userID, route, departure)
	if err != nil {
		return domain.Window{}, err
	}
	return j.Window, nil
}

func (r registrar) Cancel(ctx context.Context, userID int64) bool {
	return r.s.Cancel(ctx, userID)
}
