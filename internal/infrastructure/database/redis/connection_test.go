package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"github.com/your-org/marketplace-api/internal/testutil"
)

func TestNewConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testutil.Config()
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = mr.Port()

	c, err := NewConnection(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.Health())

	mr.Close()
	assert.Error(t, c.Health())
}

func TestNewConnection_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testutil.Config()
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = mr.Port()
	mr.Close()

	_, err := NewConnection(cfg, logger.Discard())
	assert.Error(t, err)
}
