package logger

import (
	"os"
	"path/filepath"
	"strings"

	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New 创建日志实例：控制台可读输出 + 按大小切割的JSON文件
func New(cfg types.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleConfig := encoderConfig
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level),
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(cfg.FilePath, 0o755); err != nil {
			return nil, err
		}
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FilePath, "sentry.log"),
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(fileWriter), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Init 创建日志并替换 zap 全局实例，返回的函数用于退出前刷盘
func Init(cfg types.LogConfig) (func(), error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	restore := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		restore()
	}, nil
}
