package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/blockzip/blockzip/internal/log"
	"github.com/stretchr/testify/require"
)

func TestVerboseGatesDebugLines(t *testing.T) {
	var quiet bytes.Buffer
	log.New(&quiet, false).Debug("hidden", "x", 1)
	require.Empty(t, quiet.String())

	var verbose bytes.Buffer
	log.New(&verbose, true).Debug("shown", "x", 1)
	require.Contains(t, verbose.String(), "shown")
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, false).With("rank", 3)
	logger.Info("flushed chunk", "bytes", 128)

	out := buf.String()
	require.True(t, strings.Contains(out, "rank=3"))
	require.True(t, strings.Contains(out, "bytes=128"))
}
