//go:build !dev
// +build !dev

package build

// Deployment specifies a production build.
const Deployment = Production

// LogLevel is the default log level of stdout sub-loggers.
const LogLevel = "info"
