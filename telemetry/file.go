package telemetry

import (
	"go.viam.com/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File rotation defaults.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

// FileConfig describes a rotating telemetry file.
type FileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *FileConfig) Validate(path string) error {
	if conf.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	return nil
}

// Writer returns a size rotated file writer for the config.
func (conf *FileConfig) Writer() *lumberjack.Logger {
	maxSize := conf.MaxSizeMB
	if maxSize == 0 {
		maxSize = DefaultMaxSizeMB
	}
	maxBackups := conf.MaxBackups
	if maxBackups == 0 {
		maxBackups = DefaultMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   conf.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}
}

// NewFileSink returns a sink writing lines to a size rotated file.
func NewFileSink(conf FileConfig) (*WriterSink, error) {
	if err := conf.Validate("file"); err != nil {
		return nil, err
	}
	w := conf.Writer()
	return &WriterSink{w: w, closer: w, newline: "\n"}, nil
}
