// Package utils exposes the CLI's shared infrastructure.
//
// ConfigurationLoader layers embedded defaults, configuration files and
// environment variables through Viper; LoggerFactory and LogLevelSelection
// build the zap logger used by every command.
package utils
