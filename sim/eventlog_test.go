package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_Eventf_StampsSimulatedClock(t *testing.T) {
	// GIVEN a clock at 2.000000015
	c := NewClock()
	c.Advance(2_000_000_015)
	var buf bytes.Buffer
	log := NewEventLog(&buf, "pagesim", c, false)

	// WHEN an event is logged
	log.Eventf("P%d created", 3)

	// THEN the line carries the prefix and the clock
	assert.Equal(t, "pagesim[2.15] P3 created\n", buf.String())
}

func TestEventLog_Debugf_OnlyWhenDebug(t *testing.T) {
	var quiet, verbose bytes.Buffer
	c := NewClock()

	NewEventLog(&quiet, "x", c, false).Debugf("lists")
	v := NewEventLog(&verbose, "x", c, true)
	v.Debugf("lists")

	assert.Empty(t, quiet.String())
	assert.Equal(t, "x[0.0] lists\n", verbose.String())
	assert.True(t, v.DebugEnabled())
}

func TestOpenLogFile_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	require.NoError(t, os.WriteFile(path, []byte("stale run\n"), 0o644))

	f, err := OpenLogFile(path)
	require.NoError(t, err)
	NewEventLog(f, "p", NewClock(), false).Eventf("fresh")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "p[0.0] fresh\n", string(data))
}
