package log

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsoleLayout(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: LevelDebug, Output: &buf})

	l.Named("vina").Named("Economy").Info("Instance created!")
	l.Named("vina").Error("boom", Error(errors.New("bad")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[INFO\] VINA > Economy: Instance created!$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[ERROR\] VINA: boom \{"error": "bad"\}$`), lines[1])
}

func TestConsoleNameKeepsDottedResource(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: LevelDebug, Output: &buf})

	l.Named("vina.bank").Named("Inventory").Info("Initialized!")

	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[INFO\] VINA\.BANK > Inventory: Initialized!\n$`), buf.String())
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: LevelInfo, Output: &buf})

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	l.SetLevel(LevelSilent)
	l.Error("muted")
	assert.Empty(t, buf.String())
}

func TestFieldsReachCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.With(String("module", "Inventory")).Warn("slow", Int("ms", 12), Bool("retry", false))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "Inventory", ctx["module"])
	assert.EqualValues(t, 12, ctx["ms"])
	assert.Equal(t, false, ctx["retry"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}
