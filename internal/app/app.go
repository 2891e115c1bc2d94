// Package app wires the services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"famplan/internal/config"
	"famplan/internal/family"
	"famplan/internal/push"
	"famplan/internal/reminder"
	"famplan/internal/scheduler"
	"famplan/internal/server"
	"famplan/internal/store"
	logx "famplan/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store *store.Store
	orch  *reminder.Orchestrator
	srv   *server.Server
	sched *scheduler.Service

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busy}, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	pushCfg := cfg.Push
	applyPushEnv(&pushCfg)
	transport := push.NewTransport(push.Config{
		VAPIDPublicKey:  pushCfg.VAPIDPublicKey,
		VAPIDPrivateKey: pushCfg.VAPIDPrivateKey,
		Subject:         pushCfg.Subject,
		TTLSeconds:      pushCfg.TTLSeconds,
		RatePerSec:      pushCfg.RatePerSec,
	}, log)
	if !transport.Configured() {
		log.Warn("push transport unconfigured; reminders will not be delivered")
	}

	roster := family.NewRoster(cfg.Family.Children, cfg.Family.Parents, cfg.Family.ParentEmptyWatchReceivesAll)

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Reminder.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid reminder timezone; using UTC", logx.String("tz", tz))
		}
	}
	eval := reminder.NewEvaluator(loc, cfg.Reminder.ForwardWindowMinutes, cfg.Reminder.LeadMinutes, cfg.Reminder.DefaultLeadMinutes)

	orch := reminder.NewOrchestrator(st, st, st, transport, roster, eval,
		reminder.Config{NotifiedPrefilter: cfg.Reminder.NotifiedPrefilter}, log)

	srvCfg := cfg.Server
	if tok := os.Getenv("FAMPLAN_TRIGGER_TOKEN"); tok != "" && srvCfg.TriggerToken == "" {
		srvCfg.TriggerToken = tok
	}
	srv := server.New(srvCfg, cfg.Reminder, st, orch, transport, roster, log)

	sched := scheduler.New(scheduler.Config{
		Enabled:  cfg.Reminder.Enabled,
		Interval: cfg.SweepInterval(),
	}, func(ctx context.Context) {
		if _, err := orch.Sweep(ctx); err != nil {
			log.Error("scheduled sweep failed", logx.Err(err))
		}
	}, log)

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		store:  st,
		orch:   orch,
		srv:    srv,
		sched:  sched,
	}, nil
}

// applyPushEnv lets deployments keep the VAPID key pair out of the config
// file. Env wins only where the file left a field empty.
func applyPushEnv(cfg *config.PushConfig) {
	if cfg.VAPIDPublicKey == "" {
		cfg.VAPIDPublicKey = os.Getenv("FAMPLAN_VAPID_PUBLIC_KEY")
	}
	if cfg.VAPIDPrivateKey == "" {
		cfg.VAPIDPrivateKey = os.Getenv("FAMPLAN_VAPID_PRIVATE_KEY")
	}
	if cfg.Subject == "" {
		cfg.Subject = os.Getenv("FAMPLAN_PUSH_SUBJECT")
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.srv.Start(runCtx); err != nil {
		cancel()
		return err
	}
	a.sched.Start(runCtx)

	// Follow the config file; hot-apply what can change at runtime.
	updates := a.cfgMgr.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(runCtx, cfg)
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("famplan started")
	return nil
}

// applyConfig hot-applies the reloadable parts of a new config snapshot.
// Listener address, storage path and roster changes need a restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.srv.SetTriggerToken(cfg.Server.TriggerToken)
	a.sched.Apply(ctx, scheduler.Config{
		Enabled:  cfg.Reminder.Enabled,
		Interval: cfg.SweepInterval(),
	})
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop(ctx)
	a.srv.Stop(ctx)
	a.wg.Wait()
	err := a.store.Close()
	a.log.Info("famplan stopped")
	_ = a.logSvc.Close()
	return err
}
