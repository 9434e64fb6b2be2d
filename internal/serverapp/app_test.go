package serverapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/logging"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	_, err := New(nil, testLogger())
	assert.Error(t, err)
	_, err = New(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, make(chan error, 1))
	require.NoError(t, err)
	assert.Equal(t, StopSignal, reason)
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(make(chan os.Signal, 1), serverErrors)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, StopServerError, reason)
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.WaitForStop(nil, nil)
	assert.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCleanupStack_ReverseOrderAndContinuesOnError(t *testing.T) {
	var order []string
	var s cleanupStack
	s.push("first", func(context.Context) error { order = append(order, "first"); return nil })
	s.push("second", func(context.Context) error { order = append(order, "second"); return errors.New("fail") })
	s.push("third", func(context.Context) error { order = append(order, "third"); return nil })

	s.run(context.Background(), testLogger())
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Empty(t, s.items)
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:    &config.Config{Server: config.ServerConfig{TLSMode: "off"}},
		logger: testLogger(),
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	first, err := app.Start()
	require.NoError(t, err)
	second, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second, "Start is idempotent")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "storefront",
			Password: "invalid",
			Database: "storefront",
			TLS:      config.DatabaseTLSConfig{Mode: "off"},
			Pool: config.PoolConfig{
				MaxOpen:     1,
				MaxIdle:     1,
				MaxLifetime: time.Second,
			},
		},
		Server: config.ServerConfig{
			Port:               18089,
			HealthCheckTimeout: time.Second,
			ShutdownTimeout:    time.Second,
			TLSMode:            "off",
			Auth: config.AuthConfig{
				JWTSecret: testSecret,
				TokenTTL:  time.Hour,
			},
		},
		Observability: config.ObservabilityConfig{
			ServiceName: "storefront-graphql",
			Logging:     config.LoggingConfig{Level: "error", Format: "text"},
		},
	}

	app, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.Error(t, app.Init(context.Background()), "database on port 1 is unreachable")

	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	assert.False(t, app.initialized)
	assert.Nil(t, app.handler)
}
