package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPoolConfig_MatchesDocumentedSizing(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, int32(20), cfg.MaxConns)
	assert.Equal(t, 1*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxIdleTime)
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.False(t, IsNoRows(errors.New("some other failure")))
	assert.False(t, IsNoRows(nil))
}
