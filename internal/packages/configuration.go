package packages

import (
	"strings"

	"github.com/temirov/ghcr-cleaner/internal/ghcr"
	pathutils "github.com/temirov/ghcr-cleaner/internal/utils/path"
)

var packagesConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	purgeUserConfigurationKeyConstant        = "purge.user"
	purgeOrgConfigurationKeyConstant         = "purge.org"
	purgeTokenFileConfigurationKeyConstant   = "purge.token_file"
	purgeTokenSourceConfigurationKeyConstant = "purge.token_source"
	purgeDryRunConfigurationKeyConstant      = "purge.dry_run"
	purgeBaseURLConfigurationKeyConstant     = "purge.base_url"
	purgePageSizeConfigurationKeyConstant    = "purge.page_size"
	purgePackagesConfigurationKeyConstant    = "purge.packages"
	purgeReportConfigurationKeyConstant      = "purge.report"
)

// Configuration aggregates settings for the purge command.
type Configuration struct {
	Purge PurgeConfiguration `mapstructure:"purge"`
}

// PurgeConfiguration stores options for purging untagged container versions.
type PurgeConfiguration struct {
	User         string   `mapstructure:"user"`
	Organization string   `mapstructure:"org"`
	TokenFile    string   `mapstructure:"token_file"`
	TokenSource  string   `mapstructure:"token_source"`
	DryRun       bool     `mapstructure:"dry_run"`
	BaseURL      string   `mapstructure:"base_url"`
	PageSize     int      `mapstructure:"page_size"`
	Packages     []string `mapstructure:"packages"`
	Report       string   `mapstructure:"report"`
}

// DefaultConfiguration supplies baseline values for purge configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Purge: PurgeConfiguration{
			BaseURL: ghcr.DefaultBaseURL,
			Report:  string(ReportFormatNone),
		},
	}
}

// DefaultConfigurationValues flattens DefaultConfiguration into viper default keys.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration().Purge
	return map[string]any{
		purgeUserConfigurationKeyConstant:        defaults.User,
		purgeOrgConfigurationKeyConstant:         defaults.Organization,
		purgeTokenFileConfigurationKeyConstant:   defaults.TokenFile,
		purgeTokenSourceConfigurationKeyConstant: defaults.TokenSource,
		purgeDryRunConfigurationKeyConstant:      defaults.DryRun,
		purgeBaseURLConfigurationKeyConstant:     defaults.BaseURL,
		purgePageSizeConfigurationKeyConstant:    defaults.PageSize,
		purgePackagesConfigurationKeyConstant:    []string{},
		purgeReportConfigurationKeyConstant:      defaults.Report,
	}
}

// Sanitize trims configured values and removes empty entries.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Purge = configuration.Purge.Sanitize()
	return sanitized
}

// Sanitize trims purge configuration values, expands the token file path and drops blank package names.
func (configuration PurgeConfiguration) Sanitize() PurgeConfiguration {
	sanitized := configuration
	sanitized.User = strings.TrimSpace(configuration.User)
	sanitized.Organization = strings.TrimSpace(configuration.Organization)
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	sanitized.BaseURL = strings.TrimSpace(configuration.BaseURL)
	sanitized.Report = strings.TrimSpace(configuration.Report)

	trimmedTokenFile := strings.TrimSpace(configuration.TokenFile)
	if len(trimmedTokenFile) > 0 {
		trimmedTokenFile = packagesConfigurationHomeDirectoryExpander.Expand(trimmedTokenFile)
	}
	sanitized.TokenFile = trimmedTokenFile

	if sanitized.PageSize < 0 {
		sanitized.PageSize = 0
	}

	sanitized.Packages = sanitizePackageNames(configuration.Packages)
	return sanitized
}

func sanitizePackageNames(candidateNames []string) []string {
	sanitizedNames := make([]string, 0, len(candidateNames))
	for _, candidateName := range candidateNames {
		trimmedName := strings.TrimSpace(candidateName)
		if len(trimmedName) == 0 {
			continue
		}
		sanitizedNames = append(sanitizedNames, trimmedName)
	}
	if len(sanitizedNames) == 0 {
		return nil
	}
	return sanitizedNames
}
