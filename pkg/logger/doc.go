// Package logger builds log/slog loggers for sign-in adapters and the CLI.
//
// New returns a *slog.Logger configured through functional options. The handler is wrapped
// in a decorator that copies request-scoped values out of the context on every record, so an
// attempt id stored with WithAttemptID shows up on each line logged during that attempt:
//
//	log := logger.New(logger.WithEnvironment("development", "signin"))
//	ctx := logger.WithAttemptID(ctx, "3f1c...")
//	log.InfoContext(ctx, "browser opened", logger.Provider("google"), logger.Platform("desktop"))
//
// Adapters default to Discard when no logger is injected.
package logger
