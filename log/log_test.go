package log_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"hermannm.dev/mabexplorer/log"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()

	var buffer bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buffer, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	return &buffer
}

func TestWarnCauseWrapsError(t *testing.T) {
	output := captureLogs(t, slog.LevelDebug)

	log.WarnCause(
		errors.New("connection refused"),
		"distribution fetch failed",
		slog.String("column", "moa_new"),
	)

	assert.Contains(t, output.String(), "level=WARN")
	assert.Contains(t, output.String(), "distribution fetch failed")
	assert.Contains(t, output.String(), "connection refused")
	assert.Contains(t, output.String(), "column=moa_new")
}

func TestDisabledLevelIsSkipped(t *testing.T) {
	output := captureLogs(t, slog.LevelInfo)

	log.Debug("stale response discarded")
	log.Debugf("generation %d", 3)
	assert.Empty(t, output.String())

	log.Infof("loaded %d tables", 5)
	assert.Contains(t, output.String(), "loaded 5 tables")
}

func TestErrorCauseWithoutError(t *testing.T) {
	output := captureLogs(t, slog.LevelInfo)

	log.ErrorCause(nil, "query failed")
	assert.Contains(t, output.String(), "level=ERROR")
	assert.Contains(t, output.String(), "query failed")
}
