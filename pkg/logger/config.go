package logger

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultConfig returns the default configuration of logger.
func DefaultConfig() *Config {
	return &Config{
		Level: "info",
		Color: true,
	}
}

// Config is the configuration of logger.
type Config struct {
	Level string `json:"level"`
	Color bool   `json:"color"`
	// JSON switches to one JSON object per line, for log shippers.
	JSON bool `json:"json"`
	// Node, when set, is attached to every entry as the "node" field so the logs of all pods of
	// a job can be merged.
	Node string `json:"node"`
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return []error{errors.Wrap(err, "log level")}
	}
	return nil
}

// nodeHook stamps the node name on every entry.
type nodeHook string

func (h nodeHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h nodeHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["node"]; !ok {
		e.Data["node"] = string(h)
	}
	return nil
}

// SetLogrus sets logrus globally. Hooks installed by earlier calls are replaced.
func SetLogrus(c Config) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		panic(fmt.Sprintf("invalid log level: %s", c.Level))
	}

	logrus.SetLevel(level)
	hooks := make(logrus.LevelHooks)
	if c.Node != "" {
		hooks.Add(nodeHook(c.Node))
	}
	logrus.StandardLogger().ReplaceHooks(hooks)

	if c.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   c.Color,
		DisableColors: !c.Color,
	})
}
