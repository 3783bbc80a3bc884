package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger 包装 slog.Logger，并负责关闭自己持有的 writer。
// 协议模式下 stdout 属于协议通道，日志默认只写 stderr。
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// New 创建 Logger。不传 writer 时输出到 stderr。
func New(level string, writers ...io.Writer) *Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}
	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = io.MultiWriter(writers...)
	}
	var closerList []io.Closer
	for _, w := range writers {
		if w == os.Stderr || w == os.Stdout {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			closerList = append(closerList, c)
		}
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return &Logger{
		Logger:  slog.New(handler),
		closers: closerList,
	}
}

// Close 关闭所有持有的 writer
func (l *Logger) Close() error {
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ParseLevel 解析日志级别，未知值回落到 info
func ParseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
