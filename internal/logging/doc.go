// Package logging configures slog for localsearch.
//
// By default builds log in text form to stderr at the configured level. With
// --debug, JSON logs are also written to ~/.localsearch/logs/build.log with
// size-based rotation, and `localsearch logs` reads them back.
package logging
