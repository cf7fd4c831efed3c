package log_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/on-the-ground/modelstore/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := log.New(log.LevelWarn, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = log.New("verbose", true)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := log.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, log.LevelWarn, l)

	l, err = log.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, log.LevelInfo, l)

	_, err = log.ParseLevel("verbose")
	assert.Error(t, err)
}

func TestAsync_PreservesOrderPerPartition(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := log.NewAsync(context.Background(), zap.New(core), 16, 4)

	for i := 0; i < 5; i++ {
		sink.Log(context.Background(), log.Payload{
			Partition: "count",
			Level:     log.LevelDebug,
			Message:   fmt.Sprintf("msg-%d", i),
			Fields:    map[string]any{"i": i},
		})
	}
	sink.Close()

	entries := logs.All()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), e.Message)
		assert.Equal(t, zapcore.DebugLevel, e.Level)
		assert.EqualValues(t, i, e.ContextMap()["i"])
	}
}

func TestAsync_LevelsMapToZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := log.NewAsync(context.Background(), zap.New(core), 4, 1)

	for _, lvl := range []log.Level{log.LevelInfo, log.LevelWarn, log.LevelError, "unknown"} {
		sink.Log(context.Background(), log.Payload{Level: lvl, Message: string(lvl)})
	}
	sink.Close()

	var levels []zapcore.Level
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zap.InfoLevel, zap.WarnLevel, zap.ErrorLevel, zap.InfoLevel}, levels)
}
