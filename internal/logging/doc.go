// Package logging provides opt-in file-based logging with rotation for guidecore.
// When the --debug flag is set, comprehensive logs are written to ~/.guidecore/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only,
// so the CLI stays quiet during normal use.
package logging
