// Package logger 提供带轮转的结构化日志
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

var (
	sugar = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 根据配置构建全局日志器。File为空时只写stderr。
func Init(cfg Config) error {
	if err := SetLevel(cfg.Level); err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxOrDefault(cfg.MaxSizeMB, 50),
			MaxBackups: maxOrDefault(cfg.MaxBackups, 5),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
	return nil
}

// SetLevel 运行时调整日志级别，配置热更新时调用。空串回到info。
func SetLevel(name string) error {
	if name == "" {
		level.SetLevel(zapcore.InfoLevel)
		return nil
	}
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}

// Level 返回当前生效的日志级别
func Level() zapcore.Level {
	return level.Level()
}

// S 返回全局sugared日志器，Init之前为no-op
func S() *zap.SugaredLogger {
	return sugar
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

func maxOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
