// Package logging builds the go-kit loggers used across db2kit.
package logging

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ssargent/db2kit/pkg/config"
)

// New returns a logger writing to w in the configured format, stamped with
// a UTC timestamp and filtered at the configured level. An empty level or
// format falls back to info and logfmt.
func New(cfg config.Logging, w io.Writer) (log.Logger, error) {
	var logger log.Logger
	switch strings.ToLower(cfg.Format) {
	case "", "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, errors.Newf("unknown log format %q", cfg.Format)
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	lvl := cfg.Level
	if lvl == "" {
		lvl = "info"
	}
	allowed, err := level.Parse(strings.ToLower(lvl))
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	return level.NewFilter(logger, level.Allow(allowed)), nil
}
