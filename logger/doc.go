// Package logger provides structured logging for consolehost applications
// using zerolog.
//
// It supports JSON and console output, a literate color theme for the
// console, rotated file output, a process-wide global logger and a Builder
// that hosts use to fan records out to several sinks.
//
// # Configuration
//
//	logging:
//	  level: "trace"
//	  format: "console"
//	  theme: "literate"
//
// # Usage
//
//	log := logger.WithComponent("importer")
//	log.Info("batch processed", logger.Fields("rows", 42))
package logger
