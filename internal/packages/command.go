package packages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghcr-cleaner/internal/ghcr"
	"github.com/temirov/ghcr-cleaner/internal/utils/flags"
)

const (
	purgeCommandUseConstant                    = "purge [flags] <package> [package...]"
	purgeCommandShortDescriptionConstant       = "Delete untagged GHCR container versions"
	purgeCommandLongDescriptionConstant        = "purge walks every page of versions of each named container package and deletes the versions that carry no tags."
	purgeCommandExampleConstant                = "ghcr-cleaner purge --org example --dry-run api worker"
	commandExecutionErrorTemplateConstant      = "purge failed: %w"
	reportWriteErrorTemplateConstant           = "failed to write cleanup report: %w"
	ownerSelectionErrorTemplateConstant        = "invalid package owner: %w"
	tokenResolutionErrorTemplateConstant       = "unable to resolve GitHub token: %w"
	tokenSourceParseErrorTemplateConstant      = "invalid token source: %w"
	userFlagNameConstant                       = "user"
	userFlagDescriptionConstant                = "GitHub user that owns the packages"
	organizationFlagNameConstant               = "org"
	organizationFlagDescriptionConstant        = "GitHub organization that owns the packages"
	tokenFlagNameConstant                      = "token"
	tokenFlagDescriptionConstant               = "Path to a file containing the GitHub token (defaults to GITHUB_TOKEN, GH_TOKEN or GITHUB_API_TOKEN)"
	baseURLFlagNameConstant                    = "base-url"
	baseURLFlagDescriptionConstant             = "GitHub REST API base URL"
	pageSizeFlagNameConstant                   = "page-size"
	pageSizeFlagDescriptionConstant            = "Versions requested per page (0 keeps the registry default)"
	reportFlagNameConstant                     = "report"
	reportFlagDescriptionConstant              = "Summary printed after the run"
	logMessagePurgeArgumentsConstant           = "purge arguments"
	logMessageTokenResolvedConstant            = "github token resolved"
	logFieldPackagesConstant                   = "packages"
	logFieldBaseURLConstant                    = "base_url"
	logFieldPageSizeConstant                   = "page_size"
	logFieldReportConstant                     = "report"
	logFieldTokenSourceConstant                = "token_source"
	tokenSourceDescriptionAmbientConstant      = "environment"
	tokenSourceDescriptionTemplateConstant     = "%s:%s"
	missingServiceResolverMessageConstant      = "cleanup service resolver returned no executor"
	negativePageSizeErrorTemplateConstant      = "page size must not be negative: %d"
	packageNamesArgumentsErrorTemplateConstant = "%w: pass package names as arguments or set purge.packages"
	minimumPackageArgumentsConstant            = 1
	defaultPageSizeConstant                    = 0
	emptyStringConstant                        = ""
	userAgentFallbackConstant                  = "ghcr-cleaner"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current packages configuration.
type ConfigurationProvider func() Configuration

// CleanupServiceResolver creates cleanup executors for the command.
type CleanupServiceResolver interface {
	Resolve(logger *zap.Logger, settings ServiceSettings) (CleanupExecutor, error)
}

// CommandBuilder assembles the purge command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	ServiceResolver       CleanupServiceResolver
	HTTPClient            ghcr.HTTPClient
	UserAgent             string
	EnvironmentLookup     EnvironmentLookup
	FileReader            FileReader
	TokenResolver         TokenResolver
}

// purgeOptions holds the fully resolved inputs of one purge invocation.
type purgeOptions struct {
	cleanup      CleanupOptions
	tokenSource  TokenSourceConfiguration
	baseURL      string
	pageSize     int
	reportFormat ReportFormat
}

// Build constructs the purge command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	purgeCommand := &cobra.Command{
		Use:           purgeCommandUseConstant,
		Short:         purgeCommandShortDescriptionConstant,
		Long:          purgeCommandLongDescriptionConstant,
		Example:       purgeCommandExampleConstant,
		Args:          cobra.ArbitraryArgs,
		RunE:          builder.runPurge,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	purgeCommand.Flags().String(userFlagNameConstant, emptyStringConstant, userFlagDescriptionConstant)
	purgeCommand.Flags().String(organizationFlagNameConstant, emptyStringConstant, organizationFlagDescriptionConstant)
	purgeCommand.MarkFlagsMutuallyExclusive(userFlagNameConstant, organizationFlagNameConstant)
	purgeCommand.Flags().String(tokenFlagNameConstant, emptyStringConstant, tokenFlagDescriptionConstant)
	purgeCommand.Flags().String(baseURLFlagNameConstant, ghcr.DefaultBaseURL, baseURLFlagDescriptionConstant)
	purgeCommand.Flags().Int(pageSizeFlagNameConstant, defaultPageSizeConstant, pageSizeFlagDescriptionConstant)
	purgeCommand.Flags().String(reportFlagNameConstant, string(ReportFormatNone), ReportFormatUsage(reportFlagDescriptionConstant))
	flags.BindDryRunFlag(purgeCommand, false)

	return purgeCommand, nil
}

// validateArguments requires at least one package name unless the configuration lists packages.
// It runs inside RunE because configuration is loaded after cobra validates Args.
func (builder *CommandBuilder) validateArguments(command *cobra.Command, arguments []string, configuration Configuration) error {
	if len(configuration.Purge.Packages) > 0 {
		return nil
	}
	if minimumError := cobra.MinimumNArgs(minimumPackageArgumentsConstant)(command, arguments); minimumError != nil {
		return fmt.Errorf(packageNamesArgumentsErrorTemplateConstant, ErrPackageNamesRequired)
	}
	return nil
}

func (builder *CommandBuilder) runPurge(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()

	options, optionsError := builder.parsePurgeOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger.Debug(
		logMessagePurgeArgumentsConstant,
		zap.String(logFieldOwnerConstant, options.cleanup.Owner.String()),
		zap.Strings(logFieldPackagesConstant, options.cleanup.PackageNames),
		zap.Bool(logFieldDryRunConstant, options.cleanup.DryRun),
		zap.String(logFieldBaseURLConstant, options.baseURL),
		zap.Int(logFieldPageSizeConstant, options.pageSize),
		zap.String(logFieldReportConstant, string(options.reportFormat)),
	)

	token, tokenError := builder.resolveTokenResolver().ResolveToken(command.Context(), options.tokenSource)
	if tokenError != nil {
		return fmt.Errorf(tokenResolutionErrorTemplateConstant, tokenError)
	}
	logger.Debug(logMessageTokenResolvedConstant, zap.String(logFieldTokenSourceConstant, describeTokenSource(options.tokenSource)))

	settings := ServiceSettings{
		Token:     token,
		BaseURL:   options.baseURL,
		UserAgent: builder.resolveUserAgent(),
		PageSize:  options.pageSize,
	}
	cleanupExecutor, serviceError := builder.resolveCleanupService(logger, settings)
	if serviceError != nil {
		return serviceError
	}

	summary, executionError := cleanupExecutor.Execute(command.Context(), options.cleanup)
	if executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}

	if reportError := WriteReport(command.OutOrStdout(), options.reportFormat, summary); reportError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, reportError)
	}

	return nil
}

func (builder *CommandBuilder) parsePurgeOptions(command *cobra.Command, arguments []string) (purgeOptions, error) {
	configuration := builder.resolveConfiguration()
	flagSet := command.Flags()

	if argumentsError := builder.validateArguments(command, arguments, configuration); argumentsError != nil {
		return purgeOptions{}, argumentsError
	}

	owner, ownerError := resolveOwner(command, configuration.Purge)
	if ownerError != nil {
		return purgeOptions{}, fmt.Errorf(ownerSelectionErrorTemplateConstant, ownerError)
	}

	packageNames := sanitizePackageNames(arguments)
	if len(packageNames) == 0 {
		packageNames = configuration.Purge.Packages
	}

	dryRun, dryRunError := flags.ResolveDryRun(command, configuration.Purge.DryRun)
	if dryRunError != nil {
		return purgeOptions{}, dryRunError
	}

	tokenSource, tokenSourceError := resolveTokenSource(command, configuration.Purge)
	if tokenSourceError != nil {
		return purgeOptions{}, tokenSourceError
	}

	baseURL := configuration.Purge.BaseURL
	if flagSet.Changed(baseURLFlagNameConstant) || len(baseURL) == 0 {
		baseURLFlagValue, baseURLFlagError := flagSet.GetString(baseURLFlagNameConstant)
		if baseURLFlagError != nil {
			return purgeOptions{}, baseURLFlagError
		}
		baseURL = strings.TrimSpace(baseURLFlagValue)
	}

	pageSize := configuration.Purge.PageSize
	if flagSet.Changed(pageSizeFlagNameConstant) {
		pageSizeFlagValue, pageSizeFlagError := flagSet.GetInt(pageSizeFlagNameConstant)
		if pageSizeFlagError != nil {
			return purgeOptions{}, pageSizeFlagError
		}
		if pageSizeFlagValue < 0 {
			return purgeOptions{}, fmt.Errorf(negativePageSizeErrorTemplateConstant, pageSizeFlagValue)
		}
		pageSize = pageSizeFlagValue
	}

	reportValue := configuration.Purge.Report
	if flagSet.Changed(reportFlagNameConstant) {
		reportFlagValue, reportFlagError := flagSet.GetString(reportFlagNameConstant)
		if reportFlagError != nil {
			return purgeOptions{}, reportFlagError
		}
		reportValue = reportFlagValue
	}
	reportFormat, reportFormatError := ParseReportFormat(reportValue)
	if reportFormatError != nil {
		return purgeOptions{}, reportFormatError
	}

	return purgeOptions{
		cleanup: CleanupOptions{
			Owner:        owner,
			PackageNames: packageNames,
			DryRun:       dryRun,
		},
		tokenSource:  tokenSource,
		baseURL:      baseURL,
		pageSize:     pageSize,
		reportFormat: reportFormat,
	}, nil
}

// resolveOwner prefers the owner flags as a pair; configuration applies only when neither flag was given.
func resolveOwner(command *cobra.Command, configuration PurgeConfiguration) (ghcr.PackageOwner, error) {
	flagSet := command.Flags()
	if !flagSet.Changed(userFlagNameConstant) && !flagSet.Changed(organizationFlagNameConstant) {
		return ghcr.NewPackageOwner(configuration.User, configuration.Organization)
	}

	userValue, userFlagError := flagSet.GetString(userFlagNameConstant)
	if userFlagError != nil {
		return ghcr.PackageOwner{}, userFlagError
	}
	organizationValue, organizationFlagError := flagSet.GetString(organizationFlagNameConstant)
	if organizationFlagError != nil {
		return ghcr.PackageOwner{}, organizationFlagError
	}

	return ghcr.NewPackageOwner(userValue, organizationValue)
}

// resolveTokenSource applies the precedence --token, purge.token_file, purge.token_source, then the environment.
func resolveTokenSource(command *cobra.Command, configuration PurgeConfiguration) (TokenSourceConfiguration, error) {
	tokenFlagValue, tokenFlagError := command.Flags().GetString(tokenFlagNameConstant)
	if tokenFlagError != nil {
		return TokenSourceConfiguration{}, tokenFlagError
	}
	if trimmedTokenPath := strings.TrimSpace(tokenFlagValue); len(trimmedTokenPath) > 0 {
		return FileTokenSource(trimmedTokenPath), nil
	}

	if len(configuration.TokenFile) > 0 {
		return FileTokenSource(configuration.TokenFile), nil
	}

	if len(configuration.TokenSource) > 0 {
		parsedTokenSource, parseError := ParseTokenSource(configuration.TokenSource)
		if parseError != nil {
			return TokenSourceConfiguration{}, fmt.Errorf(tokenSourceParseErrorTemplateConstant, parseError)
		}
		return parsedTokenSource, nil
	}

	return TokenSourceConfiguration{}, nil
}

func describeTokenSource(source TokenSourceConfiguration) string {
	if source.Type == TokenSourceTypeAmbient {
		return tokenSourceDescriptionAmbientConstant
	}
	return fmt.Sprintf(tokenSourceDescriptionTemplateConstant, source.Type, source.Reference)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveUserAgent() string {
	trimmedUserAgent := strings.TrimSpace(builder.UserAgent)
	if len(trimmedUserAgent) == 0 {
		return userAgentFallbackConstant
	}
	return trimmedUserAgent
}

func (builder *CommandBuilder) resolveTokenResolver() TokenResolver {
	if builder.TokenResolver != nil {
		return builder.TokenResolver
	}
	return NewTokenResolver(builder.EnvironmentLookup, builder.FileReader)
}

func (builder *CommandBuilder) resolveCleanupService(logger *zap.Logger, settings ServiceSettings) (CleanupExecutor, error) {
	serviceResolver := builder.ServiceResolver
	if serviceResolver == nil {
		serviceResolver = &DefaultCleanupServiceResolver{HTTPClient: builder.HTTPClient}
	}

	cleanupExecutor, resolveError := serviceResolver.Resolve(logger, settings)
	if resolveError != nil {
		return nil, resolveError
	}
	if cleanupExecutor == nil {
		return nil, errors.New(missingServiceResolverMessageConstant)
	}

	return cleanupExecutor, nil
}
