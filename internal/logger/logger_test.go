package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "JSON", &buf)

	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	Component(l, "tick").WithField("delta_ms", 1000).Info("tick applied")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tick", line["component"])
	assert.Equal(t, "tick applied", line["msg"])
	assert.EqualValues(t, 1000, line["delta_ms"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("loud", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestComponent_NilLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Component(nil, "x").Info("dropped")
	})
}
