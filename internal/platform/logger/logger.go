package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger: JSON to a rotated file plus console
// output on stdout. The returned logger is injected everywhere; there is no
// package-level instance.
func New(logDir string) (*zap.SugaredLogger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	logPath := filepath.Join(logDir, "app.log")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logPath = "app.log"
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // MB
		MaxBackups: 10,
		MaxAge:     28, // days
		Compress:   true,
		LocalTime:  true,
	})
	stdWriter := zapcore.AddSync(os.Stdout)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEncCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncCfg), stdWriter, zapcore.DebugLevel),
	)

	return zap.New(core, zap.AddCaller()).Sugar(), nil
}

// NewNop returns a no-op logger for tests.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
