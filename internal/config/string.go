package config

import (
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/fancy"
	"github.com/charmbracelet/lipgloss/tree"
)

// String returns a pretty-printed tree representation of the config
func (c *Config) String() string {
	return ConfigTree(c)
}

// ConfigTree converts a Config struct into a rendered tree string
func ConfigTree(cfg *Config) string {
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(fmt.Sprintf("edslrunner config (%s)", cfg.Version)))

	t.Child(fmt.Sprintf("Deployment: %s", fancy.ComponentText(cfg.Deployment)))

	engine := tree.Root(fancy.HeaderStyle.Render("Engine")).
		Child(fmt.Sprintf("Timeout: %s", cfg.Timeout)).
		Child(fmt.Sprintf("Max call stack: %d", cfg.MaxCallStackSize)).
		Child(fmt.Sprintf("Target: %s", cfg.Target)).
		Child(fmt.Sprintf("Filename: %s", cfg.Filename)).
		Child(fmt.Sprintf("Console: %t", cfg.Console))
	t.Child(engine)

	logging := tree.Root(fancy.HeaderStyle.Render("Logging")).
		Child(fmt.Sprintf("Format: %s", cfg.Logging.Format)).
		Child(fmt.Sprintf("Level: %s", cfg.Logging.Level)).
		Child(fmt.Sprintf("Output: %s", cfg.Logging.Output))
	t.Child(logging)

	return t.String()
}
