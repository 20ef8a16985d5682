// Package logger builds *slog.Logger instances for the session tooling.
//
// New takes functional options for level, format (json or text), output,
// static attributes and ContextExtractor callbacks that copy request-scoped
// values, such as the session id, from context.Context into every record.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "sessiontable"),
//	    logger.WithLevelName(os.Getenv("LOG_LEVEL")),
//	    logger.WithContextValue("session_id", sessionIDKey{}),
//	)
//	log.InfoContext(ctx, "session table is active",
//	    logger.Table("sessions"),
//	    logger.Duration(time.Since(start)),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error returns an empty Attr for nil errors, so it can be passed
// unconditionally.
package logger
