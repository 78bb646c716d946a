package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: WARN, Output: &buf})

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown")
}

func TestLoggerFieldsAreSortedAndInherited(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: DEBUG, Output: &buf}).WithField("component", "pipeline")

	l.Debug("step done", "stage", "post_created", "err", errors.New("boom now"))

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, `| component=pipeline err="boom now" stage=post_created`), line)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, WARN, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
