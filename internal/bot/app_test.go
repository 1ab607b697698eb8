package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/pollwatch/internal/bot/config"
	"github.com/dmitrijs2005/pollwatch/internal/bot/health"
	"github.com/dmitrijs2005/pollwatch/internal/bot/media"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/pollwatch/internal/bot/wa"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

type fakeRepos struct {
	*repomanager.InMemoryRepositoryManager
	migrateErr error
	pingErr    error
	closed     int
}

func (f *fakeRepos) Ping(context.Context) error { return f.pingErr }

func (f *fakeRepos) RunMigrations(context.Context) error { return f.migrateErr }
func (f *fakeRepos) Close(context.Context) error         { f.closed++; return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.GroupJIDs = []string{"120363025246125486@g.us"}
	c.DatabaseDSN = "memory://"
	c.MediaDir = filepath.Join(t.TempDir(), "media")
	c.SessionPath = filepath.Join(t.TempDir(), "session.db")
	return c
}

func stubSeams(t *testing.T, repos *fakeRepos, sessionErr error) {
	t.Helper()
	origRepos, origSession := openRepos, openSession
	t.Cleanup(func() { openRepos, openSession = origRepos, origSession })

	openRepos = func(ctx context.Context, dsn, dbName string) (repomanager.RepositoryManager, error) {
		return repos, nil
	}
	openSession = func(ctx context.Context, path string, l logging.Logger) (*wa.Session, error) {
		return nil, sessionErr
	}
}

func TestNewApp_OpenReposError(t *testing.T) {
	origRepos := openRepos
	t.Cleanup(func() { openRepos = origRepos })
	openRepos = func(context.Context, string, string) (repomanager.RepositoryManager, error) {
		return nil, errors.New("dial tcp: refused")
	}

	_, err := NewApp(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestNewApp_MigrationErrorClosesRepos(t *testing.T) {
	repos := &fakeRepos{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager(), migrateErr: errors.New("boom")}
	stubSeams(t, repos, nil)

	_, err := NewApp(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db migrations error")
	assert.Equal(t, 1, repos.closed)
}

func TestNewApp_SessionErrorClosesRepos(t *testing.T) {
	repos := &fakeRepos{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager()}
	stubSeams(t, repos, errors.New("locked"))

	_, err := NewApp(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whatsapp session error")
	assert.Equal(t, 1, repos.closed)
}

func TestNewApp_InvalidGroups(t *testing.T) {
	c := testConfig(t)
	c.GroupJIDs = []string{"15551234567@s.whatsapp.net"}

	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestNewSink(t *testing.T) {
	t.Run("filesystem", func(t *testing.T) {
		c := testConfig(t)
		s, err := newSink(context.Background(), c)
		require.NoError(t, err)
		assert.IsType(t, &media.FileSink{}, s)

		info, err := os.Stat(c.MediaDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("s3", func(t *testing.T) {
		c := testConfig(t)
		c.MediaSink = config.SinkS3
		c.S3Bucket = "media"
		c.S3Endpoint = "http://127.0.0.1:9000"
		c.S3AccessKey = "admin"
		c.S3SecretKey = "secret"

		s, err := newSink(context.Background(), c)
		require.NoError(t, err)
		assert.IsType(t, &media.S3Sink{}, s)
	})

	t.Run("unknown", func(t *testing.T) {
		c := testConfig(t)
		c.MediaSink = "ftp"
		_, err := newSink(context.Background(), c)
		assert.Error(t, err)
	})
}

func TestOnLoggedOut_ClosesOnce(t *testing.T) {
	app := &App{loggedOut: make(chan struct{})}

	app.onLoggedOut()
	app.onLoggedOut()

	select {
	case <-app.loggedOut:
	default:
		t.Fatal("loggedOut channel not closed")
	}
}

func TestClose_ClosesReposAndSession(t *testing.T) {
	repos := &fakeRepos{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager()}
	app := &App{repos: repos, session: &wa.Session{}}

	require.NoError(t, app.close())
	assert.Equal(t, 1, repos.closed)
}

func TestCheckStorage_PublishesPingResult(t *testing.T) {
	ctx := context.Background()
	repos := &fakeRepos{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager()}
	app := &App{repos: repos, health: health.NewServer(":0", logging.Nop()), logger: logging.Nop()}

	repos.pingErr = errors.New("connection refused")
	app.checkStorage(ctx)
	st, err := app.health.Check(ctx, health.Storage)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	repos.pingErr = nil
	app.checkStorage(ctx)
	st, err = app.health.Check(ctx, health.Storage)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)
}
