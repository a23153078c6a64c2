package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogOpts struct {
	Verbose  bool
	Color    string
	Encoding string
	// Output defaults to stderr.
	Output io.Writer
	// DefaultLevels sets the minimum level per logger name (eg "lager" or "lager.fire").
	// The LOG_LEVEL environment variable replaces them entirely.
	DefaultLevels map[string]zapcore.Level
}

func (opts LogOpts) useColor() bool {
	switch opts.Color {
	case "always", "on":
		return true
	case "never", "off":
		return false
	}
	// color.NoColor is set when stdout is not a terminal or NO_COLOR is set
	return !color.NoColor
}

func (opts LogOpts) Encoder() (zapcore.Encoder, error) {
	var cfg zapcore.EncoderConfig
	if opts.Verbose {
		cfg = zap.NewDevelopmentEncoderConfig()
	} else {
		cfg = zap.NewProductionEncoderConfig()
	}

	switch opts.Encoding {
	case "json":
		return zapcore.NewJSONEncoder(cfg), nil

	case "console", "":
		useColor := opts.useColor()
		cfg.EncodeTime = TimeOffsetFormatter(time.Now(), useColor)
		if useColor {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		if !opts.Verbose {
			cfg.CallerKey = zapcore.OmitKey
		}
		return zapcore.NewConsoleEncoder(cfg), nil
	}
	return nil, errors.Errorf("unknown encoding %q", opts.Encoding)
}

// Levels returns the per-logger levels to apply, honouring LOG_LEVEL=name=level,...
func (opts LogOpts) Levels() map[string]zapcore.Level {
	levelEnv, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		return opts.DefaultLevels
	}
	levels := make(map[string]zapcore.Level)
	for _, entry := range strings.Split(levelEnv, ",") {
		name, lvl, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			continue
		}
		levels[name] = level
	}
	return levels
}

func (opts LogOpts) NewCore(w zapcore.WriteSyncer) (zapcore.Core, error) {
	enc, err := opts.Encoder()
	if err != nil {
		return nil, err
	}

	leveller := zap.NewAtomicLevel()
	if opts.Verbose {
		leveller.SetLevel(zap.DebugLevel)
	} else {
		leveller.SetLevel(zap.InfoLevel)
	}

	var core zapcore.Core = zapcore.NewCore(enc, w, leveller)
	if levels := opts.Levels(); len(levels) > 0 {
		core = NewEntryLeveller(core, levels)
	}
	return core, nil
}

func (opts LogOpts) NewLogger() (*zap.Logger, error) {
	var w zapcore.WriteSyncer = os.Stderr
	if opts.Output != nil {
		w = zapcore.AddSync(opts.Output)
	}
	core, err := opts.NewCore(zapcore.Lock(w))
	if err != nil {
		return nil, err
	}
	var zopts []zap.Option
	if opts.Verbose {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...), nil
}

// TimeOffsetFormatter encodes entry times as the offset from start, which reads better than
// wall-clock time for short CLI runs.
func TimeOffsetFormatter(start time.Time, color bool) zapcore.TimeEncoder {
	var colStart = "\x1b[90m"
	var colEnd = "\x1b[0m"
	if !color {
		colStart = ""
		colEnd = ""
	}
	return func(t time.Time, e zapcore.PrimitiveArrayEncoder) {
		diff := t.Sub(start)
		switch {
		case diff < time.Second:
			e.AppendString(fmt.Sprintf(" %s%3dms%s", colStart, diff.Milliseconds(), colEnd))
		case diff < 5*time.Minute:
			e.AppendString(fmt.Sprintf("%s%5.1fs%s", colStart, diff.Seconds(), colEnd))
		default:
			e.AppendString(fmt.Sprintf("%s%5.1fm%s", colStart, diff.Minutes(), colEnd))
		}
	}
}
