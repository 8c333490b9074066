package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, core.LogContext, user.User
// Extra data maps and log contexts are merged into the single map of custom data rollbar reports.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	var extras map[string]interface{}
	merge := func(fields map[string]interface{}) {
		if extras == nil {
			extras = make(map[string]interface{}, len(fields))
		}
		for k, v := range fields {
			extras[k] = v
		}
	}

	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch arg := arg.(type) {
		case user.User:
			// set logged in User
			if !usrSet { // only set one User
				rollbar.SetPerson(person(arg))
				usrSet = true
			}
		case *user.User:
			if !usrSet && arg != nil {
				rollbar.SetPerson(person(*arg))
				usrSet = true
			}
		case core.LogContext:
			merge(arg.LogFields())
		case map[string]interface{}:
			merge(arg)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func person(u user.User) (id, login, email string) {
	return u.ID, u.Login(), u.Email
}

func (l RollbarLogger) print(args []interface{}) {
	l.std.Println(args[0])
	for _, arg := range args[1:] {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	prepared := l.prepare(msg, args)
	rollbar.Debug(prepared...)
	l.print(prepared)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	prepared := l.prepare(msg, args)
	rollbar.Info(prepared...)
	l.print(prepared)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	prepared := l.prepare(msg, args)
	rollbar.Warning(prepared...)
	l.print(prepared)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	prepared := l.prepare(msg, args)
	rollbar.Error(prepared...)
	l.print(prepared)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	prepared := l.prepare(msg, args)
	rollbar.Critical(prepared...)
	l.print(prepared)
	l.std.Fatal(msg)
}
