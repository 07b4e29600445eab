package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/config"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/memory"
	"github.com/ahakem/bluemind-members-sub000/internal/logging"
)

func TestLedgerPolicy(t *testing.T) {
	p := LedgerPolicy(config.LedgerConfig{MaxAttempts: 9, BaseBackoff: time.Millisecond, MaxBackoff: time.Second, AllowNegativeClubBalance: true})
	assert.Equal(t, 9, p.MaxAttempts)
	assert.Equal(t, time.Millisecond, p.BaseBackoff)
	assert.Equal(t, time.Second, p.MaxBackoff)
	assert.True(t, p.AllowNegativeClubBalance)
	assert.False(t, p.AllowNegativeMemberBalance)
}

func TestNewServesHealthWithoutRedisInDev(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = "secret"
	store := memory.New()
	logger := logging.Discard()

	srv, err := New(cfg, store, nil, NewServices(cfg, store, nil, logger), logger)
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRequiresRedisOutsideDev(t *testing.T) {
	cfg := config.Defaults()
	cfg.AppEnv = "production"
	cfg.JWTSecret = "secret"
	store := memory.New()
	logger := logging.Discard()

	_, err := New(cfg, store, nil, NewServices(cfg, store, nil, logger), logger)
	require.Error(t, err)
}
