package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/sales/store"
)

func TestRefreshScheduler_RunNowPublishes(t *testing.T) {
	// GIVEN: a recomputer that has never run
	rec := engine.NewRecomputer(store.NewMemory(), testOptions, nil)
	rs := NewRefreshScheduler(rec, time.Minute, zap.NewNop())

	// WHEN
	ok := rs.RunNow(context.Background())

	// THEN
	assert.True(t, ok)
	state, err := rec.State()
	require.NoError(t, err)
	assert.Equal(t, "2024-05", state.Month.String())
}

func TestRefreshScheduler_StartRunsImmediately(t *testing.T) {
	rec := engine.NewRecomputer(store.NewMemory(), testOptions, nil)
	rs := NewRefreshScheduler(rec, time.Hour, zap.NewNop())

	rs.Start()
	defer rs.Stop()

	assert.Eventually(t, func() bool {
		_, err := rec.State()
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshScheduler_DisabledWithoutInterval(t *testing.T) {
	rec := engine.NewRecomputer(store.NewMemory(), testOptions, nil)
	rs := NewRefreshScheduler(rec, 0, zap.NewNop())

	rs.Start()
	rs.Stop()

	assert.False(t, rs.Enabled)
	_, err := rec.State()
	assert.Error(t, err)
}
