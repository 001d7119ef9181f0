package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000"

type Options struct {
	Level     slog.Leveler
	AddSource bool
	NoColor   bool
	// StackOnError appends a goroutine stack after ERROR records that carry
	// an "error" attribute.
	StackOnError bool
}

type prettyHandler struct {
	mu   *sync.Mutex
	out  io.Writer
	opts Options

	attrs  []slog.Attr
	prefix string
}

func NewPrettyHandler(out io.Writer, opts *Options) slog.Handler {
	if out == nil {
		out = os.Stdout
	}
	if opts == nil {
		opts = &Options{}
	}
	return &prettyHandler{
		mu:   &sync.Mutex{},
		out:  out,
		opts: *opts,
	}
}

// Init installs a pretty handler on stdout as the slog default.
func Init(levelName string) {
	slog.SetDefault(slog.New(NewPrettyHandler(os.Stdout, &Options{
		Level:        ParseLevel(levelName),
		AddSource:    true,
		StackOnError: true,
	})))
}

func (h *prettyHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	if h.opts.Level == nil {
		return lvl >= slog.LevelInfo
	}
	return lvl >= h.opts.Level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&buf, "%s ", ts.Format(timeLayout))

	if h.opts.NoColor {
		fmt.Fprintf(&buf, "%-5s ", levelName(r.Level))
	} else {
		fmt.Fprintf(&buf, "%s%-5s\033[0m ", colorForLevel(r.Level), levelName(r.Level))
	}

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		loc := fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		fmt.Fprintf(&buf, "%-25s ", loc)
	}

	buf.WriteString(r.Message)

	var errVal error
	write := func(prefix string, a slog.Attr) {
		if e, ok := a.Value.Any().(error); ok && a.Key == "error" {
			errVal = e
		}
		writeAttr(&buf, prefix, a)
	}
	for _, a := range h.attrs {
		write("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(h.prefix, a)
		return true
	})

	buf.WriteByte('\n')

	if errVal != nil && h.opts.StackOnError && r.Level >= slog.LevelError {
		buf.Write(debug.Stack())
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(buf, p, ga)
		}
		return
	}

	fmt.Fprintf(buf, " %s%s=%v", prefix, a.Key, a.Value.Any())
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func levelName(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func ParseLevel(l string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func colorForLevel(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "\033[36m"
	case l < slog.LevelWarn:
		return "\033[32m"
	case l < slog.LevelError:
		return "\033[33m"
	default:
		return "\033[31m"
	}
}
