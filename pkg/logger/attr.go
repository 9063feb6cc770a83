package logger

import (
	"log/slog"
	"strconv"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Entity records the entity identity of a lifecycle operation.
func Entity(entityType, id string) slog.Attr {
	return slog.Attr{Key: "entity", Value: slog.GroupValue(
		slog.String("type", entityType),
		slog.String("id", id),
	)}
}

// Trigger records the trigger name under the key "trigger".
func Trigger(name string) slog.Attr {
	return slog.String("trigger", name)
}

// Transition records a source/destination state pair.
func Transition(source, dest string) slog.Attr {
	return slog.Attr{Key: "transition", Value: slog.GroupValue(
		slog.String("from", source),
		slog.String("to", dest),
	)}
}

// ActorID records the acting party under the key "actor_id".
// If id is empty, it returns an empty Attr.
func ActorID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("actor_id", id)
}
