package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestAppLogger_LevelFallback(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "verbose"})
	assert.Equal(t, zapcore.InfoLevel, l.getLoggerLevel())

	l = NewAppLogger(&Config{LogLevel: "warn"})
	assert.Equal(t, zapcore.WarnLevel, l.getLoggerLevel())
}

func TestAppLogger_With(t *testing.T) {
	l := NewAppLogger(&Config{DevMode: true, Encoder: "console"})
	l.InitLogger()

	child := l.With("mailAccountId", "acc_1")
	assert.NotNil(t, child.Logger())
	assert.NotSame(t, l.Logger(), child.Logger())
	child.Infof("processing %d threads", 3)
}
