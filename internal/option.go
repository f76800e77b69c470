package internal

import (
	"io"

	"github.com/starford/crmdesk/internal/source"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	source    source.Source
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sends the JSON log to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithSource replaces the configured data source. The caller keeps
// ownership and closes it.
func WithSource(src source.Source) Option {
	return func(a *application) {
		a.source = src
	}
}
