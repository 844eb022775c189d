// Package logger provides the leveled loggers used across the client.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// Logger is the logging interface shared by every package.
// args are logged after msg; errors are printed with their stack.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Console writes leveled lines through gommon/log
type Console struct {
	l *log.Logger
}

var _ Logger = (*Console)(nil)

// NewConsole returns a console logger writing to w.
// Debug lines are only printed when debug is set.
func NewConsole(w io.Writer, debug bool) *Console {
	l := log.New("grader")
	l.SetOutput(w)
	l.SetHeader("${time_rfc3339} ${level} ${prefix}")
	if w != os.Stderr {
		l.DisableColor()
	}
	if debug {
		l.SetLevel(log.DEBUG)
	} else {
		l.SetLevel(log.INFO)
	}
	return &Console{l: l}
}

// Stderr is a console logger on os.Stderr
func Stderr(debug bool) *Console {
	return NewConsole(os.Stderr, debug)
}

func (c *Console) Debug(msg string, args ...interface{}) { c.l.Debug(format(msg, args)) }
func (c *Console) Info(msg string, args ...interface{})  { c.l.Info(format(msg, args)) }
func (c *Console) Warn(msg string, args ...interface{})  { c.l.Warn(format(msg, args)) }
func (c *Console) Error(msg string, args ...interface{}) { c.l.Error(format(msg, args)) }

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			fmt.Fprintf(&b, " %+v", err)
			continue
		}
		fmt.Fprintf(&b, " %v", arg)
	}
	return b.String()
}

type nop struct{}

func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}

// Discard drops everything
func Discard() Logger { return nop{} }
