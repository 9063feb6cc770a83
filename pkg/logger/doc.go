// Package logger builds configured *slog.Logger instances with JSON or
// text output and provides attribute helpers for the lifecycle domain
// (Entity, Trigger, Transition, ActorID).
//
// Defaults are production-safe: JSON format at INFO level on stdout.
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug), logger.WithFormat(logger.FormatText))
//	log.Info("transition applied", logger.Entity("task", id), logger.Transition("draft", "review"))
package logger
