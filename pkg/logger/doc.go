// Package logger builds *slog.Logger instances for queue services.
//
// New applies functional options on top of a JSON/INFO/stdout default.
// WithEnvironment switches between a text/DEBUG development setup and a
// JSON/INFO setup for staging and production, and tags every record with the
// service name and environment.
//
//	log := logger.New(logger.WithEnvironment("production", "taskqueue"))
//	log.Info("task completed", logger.TaskID(id), logger.TaskType("request"))
//
// Context extractors copy request-scoped values into every record handled with
// a context:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	log.InfoContext(r.Context(), "task enqueued")
//
// Attribute helpers (TaskID, TaskType, Status, Attempt, WorkerID, Duration,
// Component, Error) keep key names consistent across packages.
package logger
