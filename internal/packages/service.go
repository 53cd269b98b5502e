package packages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/temirov/ghcr-cleaner/internal/ghcr"
)

const (
	repositoryNotConfiguredMessageConstant    = "package version repository not configured"
	ownerRequiredMessageConstant              = "package owner must be provided"
	packageNamesRequiredMessageConstant       = "at least one package name must be provided"
	blankPackageNameMessageConstant           = "package names must not be blank"
	listVersionsErrorTemplateConstant         = "failed to get versions from registry: %w"
	cleanPackageErrorTemplateConstant         = "failed to clean package %s/%s: %w"
	deleteVersionErrorTemplateConstant        = "failed to delete version %d (%s): %w"
	logMessageCleaningPackageConstant         = "cleaning package"
	logMessageFetchingPageConstant            = "fetching package versions page"
	logMessagePackageCleanedConstant          = "package cleaned"
	logMessageDeletingVersionConstant         = "deleting package version"
	logMessageSkippingTaggedVersionConstant   = "keeping tagged package version"
	logMessageDeleteFailedConstant            = "failed to delete package version"
	logMessagePackageFailedConstant           = "failed to clean package"
	logMessageCleanupFinishedConstant         = "cleanup finished"
	logFieldOwnerConstant                     = "owner"
	logFieldPackageConstant                   = "package"
	logFieldVersionConstant                   = "version"
	logFieldVersionIDConstant                 = "version_id"
	logFieldTagsConstant                      = "tags"
	logFieldDryRunConstant                    = "dry_run"
	logFieldPageConstant                      = "page"
	logFieldPagesConstant                     = "pages"
	logFieldExaminedConstant                  = "examined"
	logFieldUntaggedConstant                  = "untagged"
	logFieldDeletedConstant                   = "deleted"
	logFieldFailedConstant                    = "failed"
	logFieldPackageCountConstant              = "package_count"
	logFieldFailedPackageCountConstant        = "failed_package_count"
	firstVersionsPageConstant                 = 1
	versionDisplayNameSeparatorConstant       = ":"
	versionDisplayReferenceTemplateConstant   = "%s/%s%s%s"
	cleanupExecutionCancelledTemplateConstant = "cleanup cancelled: %w"
)

var (
	// ErrRepositoryNotConfigured indicates the service was constructed without a repository.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)
	// ErrOwnerRequired indicates CleanupOptions carried a zero owner.
	ErrOwnerRequired = errors.New(ownerRequiredMessageConstant)
	// ErrPackageNamesRequired indicates CleanupOptions named no packages.
	ErrPackageNamesRequired = errors.New(packageNamesRequiredMessageConstant)
	// ErrBlankPackageName indicates CleanupOptions contained an empty package name.
	ErrBlankPackageName = errors.New(blankPackageNameMessageConstant)
)

// PackageVersionRepository lists and deletes container package versions.
type PackageVersionRepository interface {
	ListVersions(executionContext context.Context, owner ghcr.PackageOwner, packageName string, page int) ([]ghcr.PackageVersion, error)
	DeleteVersion(executionContext context.Context, owner ghcr.PackageOwner, packageName string, versionID string) error
}

// CleanupOptions selects the packages to clean and whether deletions are performed.
type CleanupOptions struct {
	Owner        ghcr.PackageOwner
	PackageNames []string
	DryRun       bool
}

// PackageResult summarizes the cleanup of a single package.
type PackageResult struct {
	Owner             ghcr.PackageOwner
	PackageName       string
	DryRun            bool
	PagesFetched      int
	VersionsExamined  int
	UntaggedVersions  int
	DeletedVersions   int
	DeletionFailures  *multierror.Error
	Error             error
	CandidateVersions []ghcr.PackageVersion
}

// FailedDeletions reports how many delete calls returned an error.
func (result PackageResult) FailedDeletions() int {
	if result.DeletionFailures == nil {
		return 0
	}
	return len(result.DeletionFailures.Errors)
}

// Succeeded reports whether pagination ran to completion.
func (result PackageResult) Succeeded() bool {
	return result.Error == nil
}

// CleanupSummary collects the per-package results of one run, in request order.
type CleanupSummary struct {
	DryRun   bool
	Packages []PackageResult
}

// FailedPackages counts packages whose cleanup stopped with an error.
func (summary CleanupSummary) FailedPackages() int {
	failedPackageCount := 0
	for _, packageResult := range summary.Packages {
		if !packageResult.Succeeded() {
			failedPackageCount++
		}
	}
	return failedPackageCount
}

// CleanupExecutor runs a cleanup across the requested packages.
type CleanupExecutor interface {
	Execute(executionContext context.Context, options CleanupOptions) (CleanupSummary, error)
}

// CleanupService deletes untagged versions of container packages.
type CleanupService struct {
	logger     *zap.Logger
	repository PackageVersionRepository
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(logger *zap.Logger, repository PackageVersionRepository) (*CleanupService, error) {
	if repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{logger: logger, repository: repository}, nil
}

// Execute cleans every requested package in order. A failure in one package is logged
// and recorded in the summary without stopping the others; only invalid options and
// context cancellation end the run with an error.
func (service *CleanupService) Execute(executionContext context.Context, options CleanupOptions) (CleanupSummary, error) {
	if validationError := validateCleanupOptions(options); validationError != nil {
		return CleanupSummary{}, validationError
	}
	if executionContext == nil {
		executionContext = context.Background()
	}

	summary := CleanupSummary{
		DryRun:   options.DryRun,
		Packages: make([]PackageResult, 0, len(options.PackageNames)),
	}

	for _, packageName := range options.PackageNames {
		trimmedPackageName := strings.TrimSpace(packageName)
		packageResult, cleanError := service.CleanPackage(executionContext, options.Owner, trimmedPackageName, options.DryRun)
		if cleanError != nil {
			packageResult.Error = fmt.Errorf(cleanPackageErrorTemplateConstant, options.Owner, trimmedPackageName, cleanError)
		}
		summary.Packages = append(summary.Packages, packageResult)

		if cleanError == nil {
			continue
		}
		if isCancellation(cleanError) {
			return summary, fmt.Errorf(cleanupExecutionCancelledTemplateConstant, cleanError)
		}

		service.logger.Error(
			logMessagePackageFailedConstant,
			zap.String(logFieldOwnerConstant, options.Owner.String()),
			zap.String(logFieldPackageConstant, trimmedPackageName),
			zap.Error(packageResult.Error),
		)
	}

	service.logger.Info(
		logMessageCleanupFinishedConstant,
		zap.Int(logFieldPackageCountConstant, len(summary.Packages)),
		zap.Int(logFieldFailedPackageCountConstant, summary.FailedPackages()),
		zap.Bool(logFieldDryRunConstant, options.DryRun),
	)

	return summary, nil
}

// CleanPackage walks every page of versions until the registry returns an empty page,
// deleting untagged versions as it goes. A listing failure aborts the package.
func (service *CleanupService) CleanPackage(executionContext context.Context, owner ghcr.PackageOwner, packageName string, dryRun bool) (PackageResult, error) {
	packageResult := PackageResult{
		Owner:       owner,
		PackageName: packageName,
		DryRun:      dryRun,
	}

	service.logger.Info(
		logMessageCleaningPackageConstant,
		zap.String(logFieldOwnerConstant, owner.String()),
		zap.String(logFieldPackageConstant, packageName),
		zap.Bool(logFieldDryRunConstant, dryRun),
	)

	for page := firstVersionsPageConstant; ; page++ {
		if contextError := executionContext.Err(); contextError != nil {
			return packageResult, contextError
		}

		service.logger.Debug(
			logMessageFetchingPageConstant,
			zap.String(logFieldOwnerConstant, owner.String()),
			zap.String(logFieldPackageConstant, packageName),
			zap.Int(logFieldPageConstant, page),
		)

		versions, listError := service.repository.ListVersions(executionContext, owner, packageName, page)
		if listError != nil {
			return packageResult, fmt.Errorf(listVersionsErrorTemplateConstant, listError)
		}
		packageResult.PagesFetched++

		if len(versions) == 0 {
			break
		}

		if pageError := service.cleanPageVersions(executionContext, owner, packageName, versions, dryRun, &packageResult); pageError != nil {
			return packageResult, pageError
		}
	}

	service.logger.Info(
		logMessagePackageCleanedConstant,
		zap.String(logFieldOwnerConstant, owner.String()),
		zap.String(logFieldPackageConstant, packageName),
		zap.Int(logFieldPagesConstant, packageResult.PagesFetched),
		zap.Int(logFieldExaminedConstant, packageResult.VersionsExamined),
		zap.Int(logFieldUntaggedConstant, packageResult.UntaggedVersions),
		zap.Int(logFieldDeletedConstant, packageResult.DeletedVersions),
		zap.Int(logFieldFailedConstant, packageResult.FailedDeletions()),
		zap.Bool(logFieldDryRunConstant, dryRun),
	)

	return packageResult, nil
}

// cleanPageVersions deletes the untagged versions of one page in registry order.
// Delete failures are logged and recorded; only cancellation stops the page early.
func (service *CleanupService) cleanPageVersions(executionContext context.Context, owner ghcr.PackageOwner, packageName string, versions []ghcr.PackageVersion, dryRun bool, packageResult *PackageResult) error {
	for _, version := range versions {
		packageResult.VersionsExamined++

		if !version.IsUntagged() {
			service.logger.Debug(
				logMessageSkippingTaggedVersionConstant,
				zap.String(logFieldOwnerConstant, owner.String()),
				zap.String(logFieldPackageConstant, packageName),
				zap.String(logFieldVersionConstant, version.Name),
				zap.Strings(logFieldTagsConstant, version.Tags()),
			)
			continue
		}

		packageResult.UntaggedVersions++
		packageResult.CandidateVersions = append(packageResult.CandidateVersions, version)

		service.logger.Info(
			logMessageDeletingVersionConstant,
			zap.String(logFieldOwnerConstant, owner.String()),
			zap.String(logFieldPackageConstant, packageName),
			zap.String(logFieldVersionConstant, formatVersionReference(owner, packageName, version)),
			zap.Int64(logFieldVersionIDConstant, version.ID),
			zap.Bool(logFieldDryRunConstant, dryRun),
		)

		if dryRun {
			continue
		}

		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}

		deleteError := service.repository.DeleteVersion(executionContext, owner, packageName, ghcr.FormatVersionID(version.ID))
		if deleteError != nil {
			packageResult.DeletionFailures = multierror.Append(
				packageResult.DeletionFailures,
				fmt.Errorf(deleteVersionErrorTemplateConstant, version.ID, version.Name, deleteError),
			)
			service.logger.Warn(
				logMessageDeleteFailedConstant,
				zap.String(logFieldOwnerConstant, owner.String()),
				zap.String(logFieldPackageConstant, packageName),
				zap.String(logFieldVersionConstant, version.Name),
				zap.Int64(logFieldVersionIDConstant, version.ID),
				zap.Error(deleteError),
			)
			continue
		}

		packageResult.DeletedVersions++
	}

	return nil
}

func validateCleanupOptions(options CleanupOptions) error {
	if options.Owner.IsZero() {
		return ErrOwnerRequired
	}
	if len(options.PackageNames) == 0 {
		return ErrPackageNamesRequired
	}
	for _, packageName := range options.PackageNames {
		if len(strings.TrimSpace(packageName)) == 0 {
			return ErrBlankPackageName
		}
	}
	return nil
}

func isCancellation(candidateError error) bool {
	return errors.Is(candidateError, context.Canceled) || errors.Is(candidateError, context.DeadlineExceeded)
}

func formatVersionReference(owner ghcr.PackageOwner, packageName string, version ghcr.PackageVersion) string {
	return fmt.Sprintf(versionDisplayReferenceTemplateConstant, owner, packageName, versionDisplayNameSeparatorConstant, version.Name)
}
