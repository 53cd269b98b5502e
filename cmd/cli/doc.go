// Package cli constructs the ghcr-cleaner command-line interface, wiring the
// Cobra command hierarchy, the Viper-backed configuration loader, and zap
// logging around the purge command.
package cli
