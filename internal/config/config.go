package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

// Config is the root configuration for a caseflow deployment.
type Config struct {
	Version   int             `yaml:"version"`
	Database  string          `yaml:"database,omitempty"` // SQLite path; default .caseflow/caseflow.db
	Pipeline  []StageBinding  `yaml:"pipeline"`
	Users     map[string]User `yaml:"users"`
	Server    Server          `yaml:"server,omitempty"`
	Notify    Notify          `yaml:"notify,omitempty"`
	Screening Screening       `yaml:"screening,omitempty"`
	Log       Log             `yaml:"log,omitempty"`
}

// StageBinding binds a pipeline stage to the role that works it.
type StageBinding struct {
	Stage string `yaml:"stage"`
	Role  string `yaml:"role"`
}

// User is a directory entry, keyed by user name in Config.Users.
type User struct {
	Role string `yaml:"role"`
	Name string `yaml:"name,omitempty"` // Display name.
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr,omitempty"`
}

// Notify configures event publishing. An empty URL disables it.
type Notify struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// Screening configures the screening provider and the background sweep
// that refreshes pending requests while serving.
type Screening struct {
	Seed          int64  `yaml:"seed,omitempty"`           // Simulated provider seed.
	Workers       int    `yaml:"workers,omitempty"`        // Concurrent refreshes; default 4.
	SweepInterval string `yaml:"sweep_interval,omitempty"` // e.g. "30s"; empty disables the sweep.
}

// Interval parses SweepInterval. Zero means the sweep is disabled.
func (s Screening) Interval() (time.Duration, error) {
	if s.SweepInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("screening: sweep_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("screening: sweep_interval must be positive, got %s", d)
	}
	return d, nil
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config with the default KYC pipeline and
// one user per role.
func DefaultConfig() *Config {
	cfg := &Config{
		Version: 1,
		Users: map[string]User{
			"analyst":  {Role: string(workflow.RoleKYCAnalyst), Name: "KYC Analyst"},
			"reviewer": {Role: string(workflow.RoleKYCReviewer), Name: "KYC Reviewer"},
			"afc":      {Role: string(workflow.RoleAFCReviewer), Name: "AFC Reviewer"},
			"aco":      {Role: string(workflow.RoleACOReviewer), Name: "ACO Reviewer"},
			"manager":  {Role: string(workflow.RoleCaseManager), Name: "Case Manager"},
			"admin":    {Role: string(workflow.RoleAdmin), Name: "Administrator"},
		},
		Server:    Server{Addr: ":8080"},
		Notify:    Notify{SubjectPrefix: "caseflow"},
		Screening: Screening{Workers: 4, SweepInterval: "30s"},
		Log:       Log{Level: "info", Format: "text"},
	}
	for _, s := range workflow.DefaultPipeline().Stages() {
		cfg.Pipeline = append(cfg.Pipeline, StageBinding{Stage: s.Name, Role: string(s.Role)})
	}
	return cfg
}

func (c *Config) validate() error {
	if _, err := c.BuildPipeline(); err != nil {
		return err
	}
	for name, u := range c.Users {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("users: empty user name")
		}
		if u.Role == "" {
			return fmt.Errorf("user %q: role is required", name)
		}
		if _, err := workflow.ParseRole(u.Role); err != nil {
			return fmt.Errorf("user %q: %w", name, err)
		}
	}
	if _, err := c.Screening.Interval(); err != nil {
		return err
	}
	if c.Screening.Workers < 0 {
		return fmt.Errorf("screening: workers must not be negative")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// BuildPipeline turns the stage bindings into a workflow pipeline. An empty
// list yields the default pipeline.
func (c *Config) BuildPipeline() (*workflow.Pipeline, error) {
	if len(c.Pipeline) == 0 {
		return workflow.DefaultPipeline(), nil
	}
	stages := make([]workflow.Stage, 0, len(c.Pipeline))
	for _, b := range c.Pipeline {
		role, err := workflow.ParseRole(b.Role)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %q: %w", b.Stage, err)
		}
		stages = append(stages, workflow.Stage{Name: b.Stage, Role: role})
	}
	return workflow.NewPipeline(stages...)
}

// Logger builds the structured logger described by the log section.
func (l Log) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Directory is the user directory built from Config.Users. It implements
// workflow.Directory.
type Directory struct {
	users map[string]workflow.User
}

// Directory returns a read-only user directory snapshot.
func (c *Config) Directory() *Directory {
	d := &Directory{users: make(map[string]workflow.User, len(c.Users))}
	for name, u := range c.Users {
		// Roles were checked by validate; an unknown one simply never matches.
		d.users[name] = workflow.User{Username: name, Name: u.Name, Role: workflow.Role(u.Role)}
	}
	return d
}

// Lookup returns the named user.
func (d *Directory) Lookup(username string) (workflow.User, bool) {
	u, ok := d.users[username]
	return u, ok
}

// UsersByRole returns the users holding role, sorted by name.
func (d *Directory) UsersByRole(role workflow.Role) []workflow.User {
	var out []workflow.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sortByUsername(out)
	return out
}

// Users returns every user, sorted by name.
func (d *Directory) Users() []workflow.User {
	out := make([]workflow.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sortByUsername(out)
	return out
}

func sortByUsername(users []workflow.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
