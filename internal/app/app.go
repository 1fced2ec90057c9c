// Package app wires the daemon together: config, logging, storage, the
// plan service, the HTTP API, Telegram reminders and the cron jobs.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"studyplan/internal/config"
	"studyplan/internal/notifier"
	"studyplan/internal/services/docstore"
	"studyplan/internal/services/plan"
	"studyplan/internal/services/reminder"
	"studyplan/internal/storage"
	"studyplan/internal/transport/httpapi"
	logx "studyplan/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store  storage.Store
	plans  *plan.Service
	docs   *docstore.Service
	http   *httpapi.Server
	notif  *notifier.Service
	remind *reminder.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, log: log, logs: logSvc}

	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(scfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = store
	if store != nil {
		log.Info("storage enabled", logx.String("driver", scfg.Driver))
	}

	a.plans = plan.New(mapPlannerConfig(cfg), store, log.With(logx.String("comp", "plan")))

	if cfg.Docstore != nil && cfg.Docstore.Enabled {
		dcfg, err := mapDocstoreConfig(cfg.Docstore)
		if err != nil {
			return nil, err
		}
		docs, err := docstore.New(dcfg, log.With(logx.String("comp", "docstore")))
		if err != nil {
			return nil, err
		}
		a.docs = docs
	}

	if cfg.HTTP.Enabled {
		hcfg, err := mapHTTPConfig(cfg)
		if err != nil {
			return nil, err
		}
		a.http = httpapi.New(hcfg, a.plans, a.docs, log.With(logx.String("comp", "http")))
		a.plans.SetOnChange(a.http.FlushCache)
	}

	notif, err := notifier.New(mapTelegramConfig(cfg.Telegram), log.With(logx.String("comp", "notifier")))
	if err != nil {
		return nil, err
	}
	a.notif = notif

	if cfg.Reminder != nil && cfg.Reminder.Enabled {
		a.remind = reminder.New(reminder.Config{
			Enabled:      true,
			DailyAt:      cfg.Reminder.DailyAt,
			RescheduleAt: cfg.Reminder.RescheduleAt,
			Timezone:     cfg.Reminder.Timezone,
		}, a.plans, notif, log.With(logx.String("comp", "reminder")))
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.plans.Load(runCtx); err != nil {
		return err
	}
	if a.docs != nil {
		if err := a.docs.EnsureBucket(runCtx); err != nil {
			return err
		}
	}

	if a.http != nil {
		a.http.Start()
	}
	a.notif.Start(runCtx)
	if a.remind != nil {
		if err := a.remind.Start(runCtx); err != nil {
			return err
		}
	}

	sub := a.cfgm.Subscribe(4)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("app started")
	return nil
}

// reloadLoop applies hot-reloadable config sections. Storage and the HTTP
// listener are fixed at startup; changing them logs a restart hint.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.plans.Apply(mapPlannerConfig(cfg))

			if last != nil {
				if fmt.Sprint(last.Storage) != fmt.Sprint(cfg.Storage) {
					a.log.Warn("storage config changed; restart required")
				}
				if last.HTTP != cfg.HTTP {
					a.log.Warn("http config changed; restart required")
				}
			}
			last = cfg
			a.log.Info("config applied")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	if a.cancel != nil {
		a.cancel()
	}
	if a.remind != nil {
		a.remind.Stop()
	}
	a.notif.Stop()
	if a.http != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.http.Stop(stopCtx); err != nil {
			a.log.Warn("http shutdown", logx.Err(err))
		}
		cancel()
	}
	a.wg.Wait()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapPlannerConfig(cfg *config.Config) plan.Config {
	return plan.Config{
		SchedulingType: cfg.Planner.SchedulingType,
		HorizonDays:    cfg.Planner.HorizonDays,
		DayStartHour:   cfg.Planner.DayStartHour,
		DayEndHour:     cfg.Planner.DayEndHour,
	}
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	ttl, err := config.ParseDurationField("http.cache_ttl", cfg.HTTP.CacheTTL)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Enabled:  cfg.HTTP.Enabled,
		Addr:     cfg.HTTP.Addr,
		CacheTTL: ttl,
	}, nil
}

func mapTelegramConfig(tc *config.TelegramConfig) notifier.Config {
	if tc == nil {
		return notifier.Config{}
	}
	return notifier.Config{
		Enabled:    tc.Enabled,
		Token:      tc.Token,
		ChatID:     tc.ChatID,
		RatePerSec: tc.RatePerSec,
	}
}

func mapDocstoreConfig(dc *config.DocstoreConfig) (docstore.Config, error) {
	ttl, err := config.ParseDurationField("docstore.url_ttl", dc.URLTTL)
	if err != nil {
		return docstore.Config{}, err
	}
	return docstore.Config{
		Enabled:   dc.Enabled,
		Endpoint:  dc.Endpoint,
		AccessKey: dc.AccessKey,
		SecretKey: dc.SecretKey,
		Bucket:    dc.Bucket,
		UseSSL:    dc.UseSSL,
		URLTTL:    ttl,
	}, nil
}
