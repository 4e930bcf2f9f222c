// Package session owns the single live database session the HTTP surface works against.
package session

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"eav-backend/internal/config"
	"eav-backend/internal/eav"
	"eav-backend/internal/logger"
	"eav-backend/internal/metrics"
	"eav-backend/internal/store"
)

// Target names the database a client asks to connect to.
type Target struct {
	Host     string `json:"host"`
	DBName   string `json:"dbName"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// DefaultCloseGrace is how long a replaced session stays open for requests that
// already hold it.
const DefaultCloseGrace = 5 * time.Second

// sqliteName is the only shape a client may use to pick a SQLite database. The
// file always lands under the configured data directory.
var sqliteName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Opener opens a store for a database configuration. store.New is the default.
type Opener func(ctx context.Context, cfg config.DatabaseConfig) (*store.Store, error)

// Session is one open connection and the repository bound to it.
type Session struct {
	ID          uuid.UUID
	Host        string
	DBName      string
	User        string
	Store       *store.Store
	Repo        *eav.Repository
	ConnectedAt time.Time
}

// Manager holds at most one Session. Connect replaces it; readers get the
// session that was current when they asked.
type Manager struct {
	mu        sync.RWMutex
	base      config.DatabaseConfig
	tables    store.Tables
	bootstrap bool
	open      Opener
	current   *Session
	retired   map[*Session]*time.Timer
	grace     time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Manager.
type Option func(*Manager)

// WithOpener replaces store.New, mainly for tests.
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// WithMetrics records connect outcomes and the session gauge on mx.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithCloseGrace sets how long a replaced session stays open. Zero closes it at once.
func WithCloseGrace(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// NewManager creates a Manager that derives every connection from base.
func NewManager(base config.DatabaseConfig, tables store.Tables, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		base:      base,
		tables:    tables,
		bootstrap: base.Bootstrap,
		open:      store.New,
		retired:   make(map[*Session]*time.Timer),
		grace:     DefaultCloseGrace,
		log:       logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens a session to t. Connecting again to the host and database already
// open is a no-op and reports reused. On failure the previous session stays in place.
func (m *Manager) Connect(ctx context.Context, t Target) (reused bool, err error) {
	return m.connect(ctx, t, false)
}

// ConnectConfigured opens a session to the database named in the base configuration.
// The name comes from the operator, so SQLite DSNs such as file: URIs are allowed.
func (m *Manager) ConnectConfigured(ctx context.Context) (reused bool, err error) {
	return m.connect(ctx, Target{
		Host:     m.base.Host,
		DBName:   m.base.Name,
		User:     m.base.User,
		Password: m.base.Password,
	}, true)
}

func (m *Manager) connect(ctx context.Context, t Target, trusted bool) (reused bool, err error) {
	t.Host = strings.TrimSpace(t.Host)
	t.DBName = strings.TrimSpace(t.DBName)
	if err := m.validate(t, trusted); err != nil {
		m.metrics.ObserveConnect(metrics.ConnectInvalid)
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.current; cur != nil && cur.Host == t.Host && cur.DBName == t.DBName {
		m.metrics.ObserveConnect(metrics.ConnectReused)
		return true, nil
	}

	cfg := m.base.WithTarget(t.Host, t.DBName, t.User, t.Password)
	s, err := m.open(ctx, cfg)
	if err != nil {
		m.metrics.ObserveConnect(metrics.ConnectFailed)
		m.log.Warn("connect failed", zap.String("host", t.Host), zap.String("db", t.DBName), zap.Error(err))
		return false, eav.WithKind(eav.ErrConnection, err, "connect to "+t.Host+"/"+t.DBName)
	}
	if m.bootstrap {
		if err := s.Bootstrap(ctx, m.tables); err != nil {
			s.Close()
			m.metrics.ObserveConnect(metrics.ConnectFailed)
			return false, eav.WithKind(eav.ErrConnection, err, "bootstrap schema")
		}
	}

	next := &Session{
		ID:          uuid.New(),
		Host:        t.Host,
		DBName:      t.DBName,
		User:        t.User,
		Store:       s,
		Repo:        eav.NewRepository(s.DB, s.Dialect, m.tables, m.log),
		ConnectedAt: time.Now().UTC(),
	}
	prev := m.current
	m.current = next
	if prev != nil {
		m.retire(prev)
	}

	m.metrics.ObserveConnect(metrics.ConnectOK)
	m.metrics.SetSessionActive(true)
	m.log.Info("session opened",
		zap.String("session", next.ID.String()),
		zap.String("driver", s.Driver()),
		zap.String("host", t.Host),
		zap.String("db", t.DBName))
	return false, nil
}

func (m *Manager) validate(t Target, trusted bool) error {
	if t.Host == "" {
		return errors.Wrap(eav.ErrInvalidConfiguration, "host is required")
	}
	if t.DBName == "" {
		return errors.Wrap(eav.ErrInvalidConfiguration, "dbName is required")
	}
	if !trusted && m.base.IsSQLite() && t.DBName != ":memory:" && !sqliteName.MatchString(t.DBName) {
		return errors.Wrapf(eav.ErrInvalidConfiguration, "dbName %q is not a plain database name", t.DBName)
	}
	if err := m.tables.Validate(); err != nil {
		return eav.WithKind(eav.ErrInvalidConfiguration, err, "schema")
	}
	return nil
}

// retire closes s once the grace period has passed. Callers hold mu.
func (m *Manager) retire(s *Session) {
	if m.grace <= 0 {
		m.closeSession(s, "session replaced")
		return
	}
	m.retired[s] = time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		_, pending := m.retired[s]
		delete(m.retired, s)
		m.mu.Unlock()
		if pending {
			m.closeSession(s, "session retired")
		}
	})
}

func (m *Manager) closeSession(s *Session, msg string) error {
	err := s.Store.Close()
	if err != nil {
		m.log.Warn("close session", zap.String("session", s.ID.String()), zap.Error(err))
		return err
	}
	m.log.Info(msg, zap.String("session", s.ID.String()))
	return nil
}

// Current returns the open session or eav.ErrNotConnected.
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, errors.WithStack(eav.ErrNotConnected)
	}
	return m.current, nil
}

// Connected reports whether a session is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Close closes the open session and any replaced session still in its grace period.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error
	for s, timer := range m.retired {
		timer.Stop()
		delete(m.retired, s)
		errs = errors.CombineErrors(errs, m.closeSession(s, "session retired"))
	}
	if m.current == nil {
		return errs
	}
	errs = errors.CombineErrors(errs, m.closeSession(m.current, "session closed"))
	m.current = nil
	m.metrics.SetSessionActive(false)
	return errs
}
