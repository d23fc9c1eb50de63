package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/venus-kyc/caseflow/internal/config"
	"github.com/venus-kyc/caseflow/internal/dossier"
	"github.com/venus-kyc/caseflow/internal/metrics"
	"github.com/venus-kyc/caseflow/internal/notify"
	"github.com/venus-kyc/caseflow/internal/risk"
	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/worker"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

const (
	caseflowDirName = ".caseflow"
	userEnv         = "CASEFLOW_USER"
)

// caseflowPath returns the path to a file inside .caseflow/.
func caseflowPath(parts ...string) string {
	elems := append([]string{caseflowDirName}, parts...)
	return filepath.Join(elems...)
}

// app is everything a command needs, built from .caseflow/config.yaml.
type app struct {
	cfg       *config.Config
	store     *store.Store
	engine    *workflow.Engine
	screening *screening.Service
	risk      *risk.Service
	metrics   *metrics.Recorder
	nats      *notify.NATS // nil when no broker is configured
	log       *slog.Logger
}

// mustApp opens the store and wires the engine, returning an error if
// caseflow is not initialized.
func mustApp() (*app, error) {
	if _, err := os.Stat(caseflowDirName); os.IsNotExist(err) {
		return nil, fmt.Errorf("caseflow not initialized. Run: caseflow init")
	}
	cfg, err := config.Load(caseflowPath("config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbPath := cfg.Database
	if dbPath == "" {
		dbPath = caseflowPath("caseflow.db")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database %s not found. Run: caseflow init", dbPath)
	}
	pipeline, err := cfg.BuildPipeline()
	if err != nil {
		return nil, err
	}
	s, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: s, metrics: metrics.NewRecorder(), log: cfg.Log.Logger(os.Stderr)}

	var notifier workflow.Notifier = notify.Nop{}
	if cfg.Notify.NATSURL != "" {
		n, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, a.log)
		if err != nil {
			// Events stay in the audit log; the broker is best effort.
			a.log.Warn("nats unavailable, notifications disabled", "url", cfg.Notify.NATSURL, "err", err)
		} else {
			a.nats = n
			notifier = n
		}
	}

	a.engine = workflow.NewEngine(workflow.EngineConfig{
		Store:     s,
		Pipeline:  pipeline,
		Directory: cfg.Directory(),
		Notifier:  notifier,
		Observer:  a.metrics,
		Logger:    a.log,
	})
	a.screening = screening.NewService(s, screening.NewSimulatedProvider(cfg.Screening.Seed), notifier, a.log)
	a.risk = risk.NewService(s, notifier, a.log)
	return a, nil
}

// dossier returns a builder over every configured source.
func (a *app) dossier() *dossier.Builder {
	return dossier.New(a.engine, a.store, a.screening, a.risk)
}

// sweeper returns a pool refreshing pending screenings.
func (a *app) sweeper() *worker.Pool {
	return worker.NewPool(worker.PoolConfig{
		Refresher:  a.screening,
		Lister:     a.store,
		MaxWorkers: a.cfg.Screening.Workers,
		Logger:     a.log,
	})
}

// Close releases the store and broker connection.
func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	a.store.Close()
}

// actor resolves --as, falling back to $CASEFLOW_USER.
func (a *app) actor() (workflow.Actor, error) {
	name := asUser
	if name == "" {
		name = os.Getenv(userEnv)
	}
	if name == "" {
		return workflow.Actor{}, fmt.Errorf("no user given. Pass --as <user> or set %s", userEnv)
	}
	return a.engine.ResolveActor(name)
}

// openStore opens or creates the SQLite store at the given path.
func openStore(dbPath string) (*store.Store, error) {
	return store.New(dbPath)
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func hasUserEnv() bool { return os.Getenv(userEnv) != "" }
