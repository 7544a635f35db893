package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbosityFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	Setup("json", &buf)
	defer Setup("console", nil)
	defer SetVerbosity(int(Info))

	SetVerbosity(int(Info))
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, `"level":"info"`)

	buf.Reset()
	SetVerbosity(int(Trace))
	Tracef("very fine")
	assert.Contains(t, buf.String(), "very fine")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"error":   Error,
		"WARN":    Warn,
		"info":    Info,
		" debug ": Debug,
		"trace":   Trace,
		"bogus":   Info,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
