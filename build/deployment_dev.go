//go:build dev
// +build dev

package build

// Deployment specifies a development build.
const Deployment = Development

// LogLevel is the default log level of stdout sub-loggers. Development
// builds are chatty so that unit tests show the dispatched calls.
const LogLevel = "trace"
