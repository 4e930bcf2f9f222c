package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"eav-backend/internal/config"
	"eav-backend/internal/eav"
	"eav-backend/internal/metrics"
	"eav-backend/internal/store"
)

func sqliteBase() config.DatabaseConfig {
	return config.DatabaseConfig{Driver: "sqlite", Bootstrap: true}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(sqliteBase(), store.DefaultTables(), zaptest.NewLogger(t), opts...)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCurrent_NotConnected(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Current()
	require.ErrorIs(t, err, eav.ErrNotConnected)
	assert.False(t, m.Connected())
}

func TestConnect_OpensAndBootstraps(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	reused, err := m.Connect(ctx, Target{Host: "localhost", DBName: ":memory:"})
	require.NoError(t, err)
	assert.False(t, reused)

	s, err := m.Current()
	require.NoError(t, err)
	assert.NotEqual(t, "", s.ID.String())
	assert.Equal(t, "sqlite", s.Store.Driver())

	// The bootstrapped schema is usable straight away.
	_, err = s.Repo.CreateEntity(ctx, "Product", "Lamp")
	require.NoError(t, err)
}

func TestConnect_SameTargetIsReused(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	target := Target{Host: "localhost", DBName: ":memory:"}

	_, err := m.Connect(ctx, target)
	require.NoError(t, err)
	first, err := m.Current()
	require.NoError(t, err)

	reused, err := m.Connect(ctx, Target{Host: " localhost ", DBName: ":memory:"})
	require.NoError(t, err)
	assert.True(t, reused)

	second, err := m.Current()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func fileBase(t *testing.T) config.DatabaseConfig {
	base := sqliteBase()
	base.Path = t.TempDir()
	return base
}

func TestConnect_NewTargetReplacesAndClosesPrevious(t *testing.T) {
	ctx := context.Background()
	m := NewManager(fileBase(t), store.DefaultTables(), zaptest.NewLogger(t), WithCloseGrace(0))
	t.Cleanup(func() { m.Close() })

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: "first"})
	require.NoError(t, err)
	first, err := m.Current()
	require.NoError(t, err)

	_, err = m.Connect(ctx, Target{Host: "localhost", DBName: "second"})
	require.NoError(t, err)
	second, err := m.Current()
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Error(t, first.Store.DB.PingContext(ctx))
	assert.NoError(t, second.Store.DB.PingContext(ctx))
}

func TestConnect_ReplacedSessionServesInFlightRequests(t *testing.T) {
	ctx := context.Background()
	m := NewManager(fileBase(t), store.DefaultTables(), zaptest.NewLogger(t), WithCloseGrace(time.Hour))
	t.Cleanup(func() { m.Close() })

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: "first"})
	require.NoError(t, err)
	held, err := m.Current()
	require.NoError(t, err)

	_, err = m.Connect(ctx, Target{Host: "localhost", DBName: "second"})
	require.NoError(t, err)

	// A handler that fetched the session before the switch can still finish.
	_, err = held.Repo.CreateEntity(ctx, "Product", "Lamp")
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Error(t, held.Store.DB.PingContext(ctx))
}

func TestConnect_ReplacedSessionClosesAfterGrace(t *testing.T) {
	ctx := context.Background()
	m := NewManager(fileBase(t), store.DefaultTables(), zaptest.NewLogger(t), WithCloseGrace(10*time.Millisecond))
	t.Cleanup(func() { m.Close() })

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: "first"})
	require.NoError(t, err)
	first, err := m.Current()
	require.NoError(t, err)

	_, err = m.Connect(ctx, Target{Host: "localhost", DBName: "second"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return first.Store.DB.PingContext(ctx) != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnect_RejectsSQLitePathNames(t *testing.T) {
	ctx := context.Background()
	base := fileBase(t)
	m := NewManager(base, store.DefaultTables(), zaptest.NewLogger(t))
	t.Cleanup(func() { m.Close() })

	outside := filepath.Join(t.TempDir(), "x.sqlite")
	for _, name := range []string{
		"../escaped",
		"nested/db",
		"file:" + outside,
		"file:shared?mode=memory&cache=shared",
		"/etc/passwd",
		"..",
	} {
		_, err := m.Connect(ctx, Target{Host: "localhost", DBName: name})
		require.ErrorIs(t, err, eav.ErrInvalidConfiguration, name)
	}

	assert.False(t, m.Connected())
	_, err := os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(filepath.Dir(base.Path), "escaped.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestConnect_PlainSQLiteNameLandsUnderPath(t *testing.T) {
	ctx := context.Background()
	base := fileBase(t)
	m := NewManager(base, store.DefaultTables(), zaptest.NewLogger(t))
	t.Cleanup(func() { m.Close() })

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: "catalog_v2"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base.Path, "catalog_v2.db"))
	assert.NoError(t, err)
}

func TestConnectConfigured_TrustsOperatorDSN(t *testing.T) {
	base := sqliteBase()
	base.Host = "localhost"
	base.Name = "file:configured?mode=memory&cache=shared"
	m := NewManager(base, store.DefaultTables(), zaptest.NewLogger(t))
	t.Cleanup(func() { m.Close() })

	reused, err := m.ConnectConfigured(context.Background())
	require.NoError(t, err)
	assert.False(t, reused)

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, base.Name, s.DBName)
}

func TestConnect_InvalidTarget(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Connect(ctx, Target{Host: "", DBName: "app"})
	require.ErrorIs(t, err, eav.ErrInvalidConfiguration)
	_, err = m.Connect(ctx, Target{Host: "localhost", DBName: "  "})
	require.ErrorIs(t, err, eav.ErrInvalidConfiguration)
}

func TestConnect_InvalidTableNames(t *testing.T) {
	tables := store.DefaultTables()
	tables.Value = "value; DROP TABLE x"
	m := NewManager(sqliteBase(), tables, nil)

	_, err := m.Connect(context.Background(), Target{Host: "localhost", DBName: ":memory:"})
	require.ErrorIs(t, err, eav.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "value_table")
}

func TestConnect_FailureKeepsPreviousSession(t *testing.T) {
	ctx := context.Background()
	fail := false
	open := func(ctx context.Context, cfg config.DatabaseConfig) (*store.Store, error) {
		if fail {
			return nil, errors.New("dial tcp: connection refused")
		}
		return store.New(ctx, cfg)
	}
	mx := metrics.New()
	m := newTestManager(t, WithOpener(open), WithMetrics(mx))

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: ":memory:"})
	require.NoError(t, err)
	before, err := m.Current()
	require.NoError(t, err)

	fail = true
	_, err = m.Connect(ctx, Target{Host: "db.internal", DBName: "other"})
	require.ErrorIs(t, err, eav.ErrConnection)
	assert.Contains(t, err.Error(), "connection refused")

	after, err := m.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)

	assert.Equal(t, 1.0, testutil.ToFloat64(mx.ConnectsTotal.WithLabelValues(metrics.ConnectOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.ConnectsTotal.WithLabelValues(metrics.ConnectFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.SessionActive))
}

func TestConnect_OpenReceivesTarget(t *testing.T) {
	var got config.DatabaseConfig
	open := func(ctx context.Context, cfg config.DatabaseConfig) (*store.Store, error) {
		got = cfg
		return nil, errors.New("stop")
	}
	base := config.DatabaseConfig{Driver: "postgres", Port: 5432, PoolSize: 4}
	m := NewManager(base, store.DefaultTables(), nil, WithOpener(open))

	_, err := m.Connect(context.Background(), Target{Host: "db", DBName: "eav", User: "app", Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, "db", got.Host)
	assert.Equal(t, "eav", got.Name)
	assert.Equal(t, "app", got.User)
	assert.Equal(t, "secret", got.Password)
	assert.Equal(t, 4, got.PoolSize)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	mx := metrics.New()
	m := newTestManager(t, WithMetrics(mx))

	require.NoError(t, m.Close())

	_, err := m.Connect(ctx, Target{Host: "localhost", DBName: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = m.Current()
	require.ErrorIs(t, err, eav.ErrNotConnected)
	assert.Equal(t, 0.0, testutil.ToFloat64(mx.SessionActive))
}
