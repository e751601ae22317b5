// Package logger provides a small factory over log/slog plus attribute
// helpers for the delivery queue's structured logging vocabulary.
//
// # Usage
//
// Create a logger with environment-appropriate defaults:
//
//	log := logger.New(logger.WithProduction("leoshare-notify"))
//	logger.SetAsDefault(log)
//
// Or configure it piece by piece:
//
//	log := logger.New(
//	    logger.WithTextFormatter(),
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithAttr(slog.String("service", "leoshare-notify")),
//	)
//
// The attribute helpers keep log keys consistent across components:
//
//	log.Info("notification delivered",
//	    logger.JobID(job.ID),
//	    logger.Kind(job.Kind),
//	    logger.Recipient(job.Recipient),
//	    logger.Attempts(job.Attempts),
//	)
package logger
