package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/api"
	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/sales/store"
)

func fixedOptions() engine.Options {
	return engine.Options{
		Month:    "2024-05",
		Clock:    func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
}

func TestStartRefresh_PublishesWithoutInterval(t *testing.T) {
	// GIVEN: refresh disabled in config
	rec := engine.NewRecomputer(store.NewMemory(), fixedOptions, nil)
	rs := api.NewRefreshScheduler(rec, 0, zap.NewNop())

	// WHEN
	startRefresh(t.Context(), rs)
	defer rs.Stop()

	// THEN: the first state is already published
	state, err := rec.State()
	require.NoError(t, err)
	assert.Equal(t, "2024-05", state.Month.String())
	assert.False(t, rs.Enabled)
}

func TestStartRefresh_PublishesBeforeFirstTick(t *testing.T) {
	rec := engine.NewRecomputer(store.NewMemory(), fixedOptions, nil)
	rs := api.NewRefreshScheduler(rec, time.Hour, zap.NewNop())

	startRefresh(t.Context(), rs)
	defer rs.Stop()

	_, err := rec.State()
	assert.NoError(t, err)
}
