package auth

import (
	"context"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.ErrorIs(t, err, ErrWeakSecret)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeHours: 2})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, svc.(*hmacJWTService).tokenLifetime)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lifetime := time.Hour
	actorID := uuid.New()
	svc := newHMACJWTService(testSecret, lifetime, func() time.Time { return fixedTime })

	t.Run("round trips actor and role", func(t *testing.T) {
		t.Parallel()
		token, err := svc.GenerateToken(context.Background(), actorID, RoleProvider)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, actorID, claims.ActorID)
		assert.Equal(t, RoleProvider, claims.Role)
		assert.Equal(t, actorID.String(), claims.Subject)
		assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, fixedTime.Add(lifetime).Unix(), claims.ExpiresAt.Unix())
		assert.NotEmpty(t, claims.ID)
		assert.True(t, claims.HasRole(RoleAdmin, RoleProvider))
		assert.False(t, claims.HasRole(RoleAdmin))
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GenerateToken(context.Background(), actorID, Role("superuser"))
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("rejects nil actor", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GenerateToken(context.Background(), uuid.Nil, RoleAdmin)
		assert.ErrorIs(t, err, ErrMissingActor)
	})
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lifetime := time.Hour
	actorID := uuid.New()
	at := func(ts time.Time) func() time.Time { return func() time.Time { return ts } }

	tests := []struct {
		name      string
		setupFunc func() (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid token",
			setupFunc: func() (JWTService, string) {
				svc := newHMACJWTService(testSecret, lifetime, at(fixedTime))
				token, _ := svc.GenerateToken(context.Background(), actorID, RoleParticipant)
				return svc, token
			},
		},
		{
			name: "expired token",
			setupFunc: func() (JWTService, string) {
				token, _ := newHMACJWTService(testSecret, lifetime, at(fixedTime)).
					GenerateToken(context.Background(), actorID, RoleParticipant)
				return newHMACJWTService(testSecret, lifetime, at(fixedTime.Add(lifetime+time.Hour))), token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "within clock skew",
			setupFunc: func() (JWTService, string) {
				token, _ := newHMACJWTService(testSecret, lifetime, at(fixedTime)).
					GenerateToken(context.Background(), actorID, RoleParticipant)
				return newHMACJWTService(testSecret, lifetime, at(fixedTime.Add(lifetime+time.Minute))), token
			},
		},
		{
			name: "invalid signature",
			setupFunc: func() (JWTService, string) {
				token, _ := newHMACJWTService(testSecret, lifetime, at(fixedTime)).
					GenerateToken(context.Background(), actorID, RoleParticipant)
				return newHMACJWTService("wrong-secret-that-is-long-enough-for-testing", lifetime, at(fixedTime)), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "malformed token",
			setupFunc: func() (JWTService, string) {
				return newHMACJWTService(testSecret, lifetime, at(fixedTime)), "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing token",
			setupFunc: func() (JWTService, string) {
				return newHMACJWTService(testSecret, lifetime, at(fixedTime)), ""
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "unknown role",
			setupFunc: func() (JWTService, string) {
				claims := jwtCustomClaims{
					ActorID: actorID,
					Role:    "superuser",
					RegisteredClaims: jwt.RegisteredClaims{
						IssuedAt:  jwt.NewNumericDate(fixedTime),
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(lifetime)),
					},
				}
				token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				return newHMACJWTService(testSecret, lifetime, at(fixedTime)), token
			},
			wantErr: ErrInvalidRole,
		},
		{
			name: "wrong signing method",
			setupFunc: func() (JWTService, string) {
				token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwtCustomClaims{ActorID: actorID, Role: RoleAdmin}).
					SignedString(jwt.UnsafeAllowNoneSignatureType)
				return newHMACJWTService(testSecret, lifetime, at(fixedTime)), token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc()
			claims, err := svc.ValidateToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, actorID, claims.ActorID)
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"participant", "provider", "admin"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), r)
	}
	_, err := ParseRole("Admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
