package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v2"

	"injurywatch/logger"
)

// Config 应用配置
type Config struct {
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Model struct {
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		CacheSize      int    `yaml:"cache_size"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logger.Config `yaml:"log"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) modelTimeout() time.Duration {
	if c.Model.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// watchConfig 监听配置文件变化，变化时通过onChange下发新配置。
// 端点等可热更字段由回调方应用，其余字段需重启生效。
func watchConfig(path string, onChange func(*Config)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// 监听目录而不是文件本身，编辑器原子替换会使文件watch失效
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				config, err := loadConfig(path)
				if err != nil {
					logger.S().Warnw("config reload failed", "error", err)
					continue
				}
				logger.S().Infow("config reloaded", "path", path)
				onChange(config)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.S().Warnw("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
