package review

import "log/slog"

// Level classifies a notice
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a one-shot message for the user
type Notice struct {
	Level   Level
	Message string
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to the default slog logger
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	switch n.Level {
	case LevelError:
		slog.Error(n.Message)
	default:
		slog.Info(n.Message, "level", n.Level.String())
	}
}

func failure(err error) Notice {
	return Notice{Level: LevelError, Message: err.Error()}
}
