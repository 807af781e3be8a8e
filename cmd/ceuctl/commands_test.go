package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/mocks"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCertificateNumber = "CE-2026-ABCDEFGHJK"

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-that-is-at-least-32-characters",
			TokenLifetimeHours: 1,
		},
		Certificate: config.CertificateConfig{
			PassThreshold:    0.8,
			AttemptPolicy:    "best",
			NumberPrefix:     "CE",
			NumberMaxRetries: 3,
		},
		Scheduler: config.SchedulerConfig{IntervalSeconds: 60, ApprovalValidityDays: 365},
	}
}

type testBackend struct {
	mem      *mocks.Memory
	migrated []string
}

// setupTestBackend points the commands at an in-memory backend.
func setupTestBackend(t *testing.T) *testBackend {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := mocks.NewMemory()
	cfg := testConfig()

	stores := service.Stores{
		Providers:     mem.Providers(),
		Events:        mem.Events(),
		Registrations: mem.Registrations(),
		Attendance:    mem.Attendance(),
		Feedback:      mem.Feedback(),
		Quizzes:       mem.Quizzes(),
		Certificates:  mem.Certificates(),
	}

	tb := &testBackend{mem: mem}
	origLoad, origOpen := loadConfig, openBackend
	loadConfig = func() (*config.Config, *slog.Logger, error) { return cfg, log, nil }
	openBackend = func(context.Context) (*backend, error) {
		b, err := newServiceBackend(cfg, log, stores, &mocks.Transactor{})
		if err != nil {
			return nil, err
		}
		b.migrate = func(_ context.Context, command string) error {
			tb.migrated = append(tb.migrated, command)
			return nil
		}
		return b, nil
	}
	t.Cleanup(func() {
		loadConfig, openBackend = origLoad, origOpen
		rootCmd.SetArgs(nil)
	})
	return tb
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	err := rootCmd.Execute()
	return buf.String(), err
}

func seedCertificate(t *testing.T, mem *mocks.Memory) *domain.Certificate {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	provider, err := domain.NewProvider("Behavior School", "OP-01-2345", "", now, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Providers().Create(ctx, provider))

	event, err := domain.NewEvent(provider.ID, "Ethics in Practice", domain.CECategoryEthics,
		domain.ModalityInPerson, 1.5, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, mem.Events().Create(ctx, event))

	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Pat Lee", "1-23-45678", "pat@example.com", now)
	require.NoError(t, err)
	require.NoError(t, mem.Registrations().Create(ctx, reg))

	cert, err := domain.NewCertificate(testCertificateNumber, reg, event, provider, now)
	require.NoError(t, err)
	created, err := mem.Certificates().CreateIfAbsent(ctx, cert)
	require.NoError(t, err)
	require.True(t, created)
	return cert
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"migrate", "sweep", "revoke", "verify", "token"} {
		assert.Contains(t, names, want)
	}
}

func TestMigrateCmd(t *testing.T) {
	tb := setupTestBackend(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration up completed.")

	out, err = execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration status completed.")

	_, err = execute(t, "migrate", "up", "extra")
	assert.Error(t, err)
	assert.Equal(t, []string{"up", "status"}, tb.migrated)
}

func TestSweepCmd(t *testing.T) {
	mem := setupTestBackend(t).mem
	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := domain.NewProvider("Expired Co", "OP-00-0001", "", now.Add(-400*24*time.Hour), 0)
	require.NoError(t, err)
	require.NoError(t, mem.Providers().Create(ctx, expired))

	active, err := domain.NewProvider("Active Co", "OP-00-0002", "", now, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Providers().Create(ctx, active))

	due, err := domain.NewEvent(active.ID, "Supervision Basics", domain.CECategorySupervision,
		domain.ModalitySynchronous, 2, now.Add(-time.Minute))
	require.NoError(t, err)
	future := now.Add(time.Hour)
	due.EndDate = &future
	due.Status = domain.EventStatusApproved
	require.NoError(t, mem.Events().Create(ctx, due))

	out, err := execute(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Sweep completed.")

	got, err := mem.Providers().GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusLapsed, got.Status)

	got, err = mem.Providers().GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusActive, got.Status)

	event, err := mem.Events().GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusInProgress, event.Status)
}

func TestRevokeAndVerifyCmds(t *testing.T) {
	mem := setupTestBackend(t).mem
	cert := seedCertificate(t, mem)
	adminID := uuid.New()

	out, err := execute(t, "verify", "ce-2026-abcdefghjk")
	require.NoError(t, err)
	assert.Contains(t, out, testCertificateNumber)
	assert.Contains(t, out, "Pat Lee")
	assert.Contains(t, out, "1.5 ethics")
	assert.NotContains(t, out, "1-23-45678")

	out, err = execute(t, "revoke", cert.CertificateNumber, "--reason", "issued in error", "--by", adminID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")

	stored, err := mem.Certificates().GetByID(context.Background(), cert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CertificateStatusRevoked, stored.Status)
	assert.Equal(t, "issued in error", stored.RevocationReason)
	require.NotNil(t, stored.RevokedBy)
	assert.Equal(t, adminID, *stored.RevokedBy)

	_, err = execute(t, "verify", cert.CertificateNumber)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRevokeCmd_Validation(t *testing.T) {
	setupTestBackend(t)

	_, err := execute(t, "revoke", testCertificateNumber, "--reason", "x", "--by", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --by")

	_, err = execute(t, "revoke", "CE-2026-AAAAAAAAAA", "--reason", "x", "--by", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoke failed")
}

func TestTokenCmd(t *testing.T) {
	setupTestBackend(t)
	actorID := uuid.New()

	out, err := execute(t, "token", "--actor", actorID.String(), "--role", "provider")
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(testConfig().Auth)
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(context.Background(), string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, actorID, claims.ActorID)
	assert.Equal(t, auth.RoleProvider, claims.Role)

	_, err = execute(t, "token", "--role", "superuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --role")
}
