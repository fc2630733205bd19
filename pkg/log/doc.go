// Package log provides per-subsystem loggers on top of charmbracelet/log.
//
// Key features:
//
//   - Named loggers via ForService(name), rendered as a log prefix
//   - Convenience level helpers: Infof, Warnf, Errorf, Debugf
//   - Debug logging enabled globally (SetGlobalDebug) or per service
//     (EnableDebugFor / DisableDebugFor)
//   - Central output writer (SetOutput) that updates existing loggers
//
// Basic usage:
//
//	crawl := log.ForService("crawler")
//	crawl.Infof("indexed %d projects", n)
//	crawl.Debugf("page payload: %v", page) // printed only when debug enabled
//
// Tests can redirect output by calling SetOutput with a bytes.Buffer,
// enabling assertions on log contents.
package log
