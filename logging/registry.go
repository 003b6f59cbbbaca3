package logging

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. A `*` in the
// pattern matches any run of characters, so "speedctl.*" covers every sublogger of speedctl.
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   Level  `json:"level"`
}

// e.g. "speedctl", "encoder-a" or "*".
const validLoggerSection = `([a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*|\*)`

var loggerPatternRegexp = regexp.MustCompile(`^` + validLoggerSection + `(\.` + validLoggerSection + `)*$`)

// ValidatePatterns returns an error naming the first malformed pattern.
func ValidatePatterns(patterns []LoggerPatternConfig) error {
	for _, lpc := range patterns {
		if !loggerPatternRegexp.MatchString(lpc.Pattern) {
			return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
		}
	}
	return nil
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}

type compiledPattern struct {
	re    *regexp.Regexp
	level Level
}

// registry tracks a root logger and every sublogger created from it so their levels can be
// changed together. Later patterns win over earlier ones.
type registry struct {
	mu       sync.RWMutex
	loggers  map[string]Logger
	patterns []compiledPattern
}

func newRegistry() *registry {
	return &registry{loggers: make(map[string]Logger)}
}

// register records logger under name, replacing any earlier logger of the same name, and applies
// the current patterns to it.
func (lr *registry) register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
	if level, ok := lr.levelFor(name); ok {
		logger.SetLevel(level)
	}
}

func (lr *registry) levelFor(name string) (Level, bool) {
	var (
		level   Level
		matched bool
	)
	for _, p := range lr.patterns {
		if p.re.MatchString(name) {
			level = p.level
			matched = true
		}
	}
	return level, matched
}

func (lr *registry) names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	return names
}

func (lr *registry) update(base Level, patterns []LoggerPatternConfig) error {
	if err := ValidatePatterns(patterns); err != nil {
		return err
	}
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, lpc := range patterns {
		re, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return err
		}
		compiled = append(compiled, compiledPattern{re: re, level: lpc.Level})
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.patterns = compiled
	for name, logger := range lr.loggers {
		level, ok := lr.levelFor(name)
		if !ok {
			level = base
		}
		logger.SetLevel(level)
	}
	return nil
}

// UpdateLevels sets logger and all of its subloggers to base, then applies patterns on top.
// Subloggers created afterwards also pick up matching patterns.
func UpdateLevels(logger Logger, base Level, patterns []LoggerPatternConfig) error {
	imp, ok := logger.(*impl)
	if !ok {
		return errors.Errorf("logger %T does not track its subloggers", logger)
	}
	return imp.registry.update(base, patterns)
}

// RegisteredLoggerNames returns the names of logger and every sublogger created from it.
func RegisteredLoggerNames(logger Logger) []string {
	imp, ok := logger.(*impl)
	if !ok {
		return nil
	}
	return imp.registry.names()
}
