// Package logger writes simpletext's debug log and its console messages.
//
// A DefaultLogger has two outputs. With debug logging on, every record goes to
// a log file as one zerolog JSON line tagged app=simpletext. Separately, a few
// methods print a decorated line for the person running the command:
//
//	Info            file only
//	Warning         file, and stdout when verbose
//	Error           file, and always stderr
//	InfoToUser      file (user=true) and stdout
//	WarningToUser   file (user=true) and stdout
//	Success         file (user=true) and stdout
//	StatusMessage   stdout only
//
// The engine reports stage progress through Info, so a failed sync can be
// traced in the file without cluttering the terminal or the HTTP server's
// output.
//
//	log := logger.New(cfg.Debug, cfg.LogFile, true)
//	defer log.Close()
//	log.Success("appended to %s", path)
//
// All methods are safe for concurrent use.
package logger
