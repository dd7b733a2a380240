package subscription

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/adapter/cli"
	internalApp "github.com/felixgeelhaar/estatecrm/internal/app"
	"github.com/felixgeelhaar/estatecrm/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAdminID = uuid.MustParse("00000000-0000-0000-0000-0000000000ad")

type fixture struct {
	app        *cli.App
	userID     uuid.UUID
	categoryID uuid.UUID
	locationID uuid.UUID
}

// setupLocalModeTestApp wires the CLI against a throwaway SQLite database.
func setupLocalModeTestApp(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                      "test",
		LocalMode:                   true,
		DatabaseDriver:              "sqlite",
		SQLitePath:                  filepath.Join(t.TempDir(), "cli.db"),
		AdminID:                     testAdminID.String(),
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             50,
		OutboxMaxRetries:            3,
		SweeperBatchSize:            10,
		PublisherBreakerMaxFailures: 3,
		PublisherBreakerTimeout:     time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	container, err := internalApp.NewContainer(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	f := &fixture{
		userID:     uuid.New(),
		categoryID: uuid.New(),
		locationID: uuid.New(),
	}
	db := container.DBConn.(interface{ DB() *sql.DB }).DB()
	_, err = db.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES (?, 'Apartments')`, f.categoryID.String())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO locations (id, name) VALUES (?, 'Kazan')`, f.locationID.String())
	require.NoError(t, err)

	f.app = cli.NewApp(container)
	cli.SetApp(f.app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return f
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// subscriptionID reads the id from a "Subscription <id> <verb>" line.
func subscriptionID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2, out)
	require.Equal(t, "Subscription", fields[0], out)
	_, err := uuid.Parse(fields[1])
	require.NoError(t, err, out)
	return fields[1]
}

func (f *fixture) scopeArgs() []string {
	return []string{
		"--user", f.userID.String(),
		"--category", f.categoryID.String(),
		"--location", f.locationID.String(),
	}
}

func TestNewApp_ReadsAdminFromConfig(t *testing.T) {
	f := setupLocalModeTestApp(t)
	assert.Equal(t, testAdminID, f.app.AdminID)
}

func TestTariffsCommand(t *testing.T) {
	setupLocalModeTestApp(t)

	out, err := run(t, "tariffs", "--flush-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "No catalog cache configured.")
	assert.Contains(t, out, "premium_30")
	assert.Contains(t, out, "5000.00")
	assert.Contains(t, out, "demo")
}

func TestCreateAccessToggleCancelHistory(t *testing.T) {
	f := setupLocalModeTestApp(t)

	args := append([]string{"create", "--tariff", "premium_7", "--activate", "--payment", "cash"}, f.scopeArgs()...)
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "status: active")
	assert.Contains(t, out, "price: 1500.00")
	id := subscriptionID(t, out)

	out, err = run(t, "access", "--user", f.userID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "access: granted")

	out, err = run(t, "access", "--user", f.userID.String(),
		"--category", uuid.NewString(), "--location", f.locationID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "access: denied")

	out, err = run(t, "toggle", id, "--user", f.userID.String(), "--enabled=false")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "enabled: false")

	out, err = run(t, "list", "--user", f.userID.String())
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, "cancel", id, "--reason", "refund")
	require.NoError(t, err)
	assert.Contains(t, out, "status: cancelled")

	out, err = run(t, "history", "--subscription", id, "--sort", "action_date", "--order", "asc")
	require.NoError(t, err)
	assert.Contains(t, out, "Apartments")
	assert.Contains(t, out, "Kazan")
	assert.Less(t, strings.Index(out, "activated"), strings.Index(out, "cancelled"))

	out, err = run(t, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "access: false")
}

func TestRequestActivateAndExtend(t *testing.T) {
	f := setupLocalModeTestApp(t)

	args := append([]string{"request", "--tariff", "premium_7"}, f.scopeArgs()...)
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "status: pending")
	id := subscriptionID(t, out)

	out, err = run(t, "activate", id, "--payment", "card", "--admin", uuid.NewString())
	require.NoError(t, err)
	assert.Contains(t, out, "status: active")

	out, err = run(t, "request-extension", id, "--user", f.userID.String(), "--tariff", "premium_30")
	require.NoError(t, err)
	assert.Contains(t, out, "status: extend_pending")
	assert.Contains(t, out, "requested tariff:")

	out, err = run(t, "extend", id, "--payment", "card", "--price", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "extended")
	assert.Contains(t, out, "price: 5000.00")

	out, err = run(t, "change-tariff", id, "--tariff", "premium_7", "--price", "1200.50")
	require.NoError(t, err)
	assert.Contains(t, out, "price: 1200.50")
}

func TestSweepCommand(t *testing.T) {
	f := setupLocalModeTestApp(t)

	args := append([]string{"create", "--tariff", "premium_7", "--activate", "--payment", "cash"}, f.scopeArgs()...)
	_, err := run(t, args...)
	require.NoError(t, err)

	f.app.Now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	out, err := run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "expired=1")

	out, err = run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "expired=0")
}

func TestCommandErrors(t *testing.T) {
	t.Run("no app", func(t *testing.T) {
		cli.SetApp(nil)
		_, err := run(t, "sweep")
		assert.ErrorContains(t, err, "application not initialized")
	})

	t.Run("no admin", func(t *testing.T) {
		f := setupLocalModeTestApp(t)
		f.app.SetAdminID(uuid.Nil)
		_, err := run(t, "cancel", uuid.NewString())
		assert.ErrorContains(t, err, "ESTATECRM_ADMIN_ID")
	})

	t.Run("bad price", func(t *testing.T) {
		f := setupLocalModeTestApp(t)
		args := append([]string{"create", "--tariff", "premium_7", "--price", "1.005"}, f.scopeArgs()...)
		_, err := run(t, args...)
		assert.ErrorContains(t, err, "invalid --price")
	})

	t.Run("unknown tariff", func(t *testing.T) {
		f := setupLocalModeTestApp(t)
		args := append([]string{"request", "--tariff", "gold"}, f.scopeArgs()...)
		_, err := run(t, args...)
		assert.ErrorContains(t, err, "gold")
	})

	t.Run("partial scope", func(t *testing.T) {
		setupLocalModeTestApp(t)
		_, err := run(t, "access", "--user", uuid.NewString(), "--category", uuid.NewString())
		assert.ErrorContains(t, err, "together")
	})

	t.Run("unknown status", func(t *testing.T) {
		setupLocalModeTestApp(t)
		_, err := run(t, "list", "--status", "frozen")
		assert.ErrorContains(t, err, "frozen")
	})
}
