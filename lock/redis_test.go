package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/lock"
)

// Runs only against a real server: REDIS_ADDR=localhost:6379 go test ./lock/...
func TestRedis_LockAndRelease(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	r, err := lock.NewRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), logrus.New())
	require.NoError(t, err)
	defer r.Close()

	tenant := "lock-test-" + time.Now().Format("150405.000000")
	release, err := r.Lock(ctx, generic.TenantID(tenant))
	require.NoError(t, err)

	// WHEN: A second holder tries with a short deadline
	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = r.Lock(short, generic.TenantID(tenant))
	assert.Error(t, err)

	release()
	again, err := r.Lock(ctx, generic.TenantID(tenant))
	require.NoError(t, err)
	again()
}
