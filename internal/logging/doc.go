// Package logging provides leveled, printf-style logging for the service
// and the CLI.
//
// Levels, in increasing severity: DEBUG, INFO, WARN, ERROR. FATAL always
// prints and exits.
//
// The level is read once from the environment: DEBUG=true forces debug,
// otherwise LOG_LEVEL (debug, info, warn, error) applies, defaulting to
// info. SetLevel overrides it at runtime.
package logging
