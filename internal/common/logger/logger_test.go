package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestZapLogger_FieldsAndScoping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": "generate-dossier-pdf"})

	log.Warn("image fallback", map[string]interface{}{
		"reference": "DP-20250101-001",
		"cause":     errors.New("bad jpeg"),
	})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "generate-dossier-pdf", ctx["taskType"])
		assert.Equal(t, "DP-20250101-001", ctx["reference"])
		assert.Equal(t, "bad jpeg", ctx["cause"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	}
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithError(errors.New("x")).Error("ignored", nil)
	})
}
