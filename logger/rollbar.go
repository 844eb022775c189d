package logger

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
)

// RollbarConfig configures error reporting
type RollbarConfig struct {
	Token       string
	Environment string
	CodeVersion string
}

// Person identifies the user an item is reported for
type Person struct {
	ID       string
	Username string
	Email    string
}

// Rollbar reports to rollbar and mirrors every line to a local logger
type Rollbar struct {
	local Logger
}

var _ Logger = (*Rollbar)(nil)

// NewRollbar configures the rollbar notifier.
// Reporting is disabled when no token is set.
func NewRollbar(local Logger, conf RollbarConfig) *Rollbar {
	host, _ := os.Hostname()
	rollbar.SetToken(conf.Token)
	rollbar.SetEnvironment(conf.Environment)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(conf.CodeVersion)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.Token != "")
	return &Rollbar{local: local}
}

// Enable turns reporting on or off
func (l *Rollbar) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes queued items
func (l *Rollbar) Close() {
	rollbar.Wait()
}

// expected fmt: msg | error, map[string]interface{}, Person
func (l *Rollbar) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var personSet bool
	remote := make([]interface{}, 0, len(args)+1)
	local := make([]interface{}, 0, len(args))
	remote = append(remote, msg)
	for _, arg := range args {
		if p, ok := arg.(Person); ok {
			if !personSet {
				rollbar.SetPerson(p.ID, p.Username, p.Email)
				personSet = true
			}
			continue
		}
		remote = append(remote, arg)
		local = append(local, arg)
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return remote, local
}

func (l *Rollbar) Debug(msg string, args ...interface{}) {
	// debug lines are too chatty for rollbar
	_, local := l.prepare(msg, args)
	l.local.Debug(msg, local...)
}

func (l *Rollbar) Info(msg string, args ...interface{}) {
	remote, local := l.prepare(msg, args)
	rollbar.Info(remote...)
	l.local.Info(msg, local...)
}

func (l *Rollbar) Warn(msg string, args ...interface{}) {
	remote, local := l.prepare(msg, args)
	rollbar.Warning(remote...)
	l.local.Warn(msg, local...)
}

func (l *Rollbar) Error(msg string, args ...interface{}) {
	remote, local := l.prepare(msg, args)
	rollbar.Error(remote...)
	l.local.Error(msg, local...)
}
