// Package logging builds the root zap logger.
//
// Production output is JSON; development output is colored console text.
// Components receive a plain *zap.Logger from Component, which names the
// logger and tags every entry with a component field. The level is a
// zap.AtomicLevel and is served at /log/level by the server.
//
//	logger, _ := logging.New(logging.DefaultConfig())
//	grantLog := logger.Component("grant")
//	grantLog.Info("Background task started", zap.Int64("task_id", 7))
package logging
