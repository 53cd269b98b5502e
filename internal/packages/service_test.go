package packages_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ghcr-cleaner/internal/ghcr"
	packages "github.com/temirov/ghcr-cleaner/internal/packages"
)

const (
	testUserNameConstant             = "user"
	testOrganizationNameConstant     = "org"
	testPackageNameConstant          = "package"
	testSecondPackageNameConstant    = "second-package"
	testDeletingLogMessageConstant   = "deleting package version"
	testPackageFailedMessageConstant = "failed to clean package"
	testDeleteFailedMessageConstant  = "failed to delete package version"
	testTaggedVersionTagConstant     = "latest"
)

type listCall struct {
	owner       ghcr.PackageOwner
	packageName string
	page        int
}

type deleteCall struct {
	ownerPath   string
	packageName string
	versionID   string
}

type stubRepository struct {
	pagesByPackage   map[string][][]ghcr.PackageVersion
	listErrors       map[string]error
	deleteErrorsByID map[string]error
	listCalls        []listCall
	deleteCalls      []deleteCall
	afterList        func(page int)
}

func (repository *stubRepository) ListVersions(_ context.Context, owner ghcr.PackageOwner, packageName string, page int) ([]ghcr.PackageVersion, error) {
	repository.listCalls = append(repository.listCalls, listCall{owner: owner, packageName: packageName, page: page})
	if repository.afterList != nil {
		repository.afterList(page)
	}
	if listError, exists := repository.listErrors[packageName]; exists {
		return nil, listError
	}
	pages := repository.pagesByPackage[packageName]
	if page-1 < len(pages) {
		return pages[page-1], nil
	}
	return nil, nil
}

func (repository *stubRepository) DeleteVersion(_ context.Context, owner ghcr.PackageOwner, packageName string, versionID string) error {
	repository.deleteCalls = append(repository.deleteCalls, deleteCall{ownerPath: owner.PathSegment(), packageName: packageName, versionID: versionID})
	return repository.deleteErrorsByID[versionID]
}

func (repository *stubRepository) deletedIDs() []string {
	identifiers := make([]string, 0, len(repository.deleteCalls))
	for _, call := range repository.deleteCalls {
		identifiers = append(identifiers, call.versionID)
	}
	return identifiers
}

func untaggedVersion(identifier int64) ghcr.PackageVersion {
	return ghcr.PackageVersion{
		ID:   identifier,
		Name: fmt.Sprintf("sha256:%064d", identifier),
		Metadata: ghcr.PackageVersionMetadata{
			PackageType: "container",
		},
	}
}

func taggedVersion(identifier int64, tags ...string) ghcr.PackageVersion {
	version := untaggedVersion(identifier)
	version.Metadata.Container.Tags = tags
	return version
}

func newObservedService(testInstance *testing.T, repository packages.PackageVersionRepository) (*packages.CleanupService, *observer.ObservedLogs) {
	testInstance.Helper()
	observerCore, observedLogs := observer.New(zap.DebugLevel)
	service, serviceError := packages.NewCleanupService(zap.New(observerCore), repository)
	require.NoError(testInstance, serviceError)
	return service, observedLogs
}

func TestNewCleanupServiceRequiresRepository(testInstance *testing.T) {
	service, serviceError := packages.NewCleanupService(nil, nil)
	require.ErrorIs(testInstance, serviceError, packages.ErrRepositoryNotConfigured)
	require.Nil(testInstance, service)

	service, serviceError = packages.NewCleanupService(nil, &stubRepository{})
	require.NoError(testInstance, serviceError)
	require.NotNil(testInstance, service)
}

func TestCleanPackage(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		owner                ghcr.PackageOwner
		pages                [][]ghcr.PackageVersion
		deleteErrors         map[string]error
		dryRun               bool
		expectedListCalls    int
		expectedDeletedIDs   []string
		expectedOwnerPath    string
		expectedExamined     int
		expectedUntagged     int
		expectedDeleted      int
		expectedFailedDelete int
	}{
		{
			name:               "all_tagged_versions_are_kept",
			owner:              ghcr.NewUserOwner(testUserNameConstant),
			pages:              [][]ghcr.PackageVersion{{taggedVersion(1, "v1"), taggedVersion(2, testTaggedVersionTagConstant)}},
			expectedListCalls:  2,
			expectedDeletedIDs: []string{},
			expectedExamined:   2,
		},
		{
			name:               "all_tagged_versions_are_kept_in_dry_run",
			owner:              ghcr.NewUserOwner(testUserNameConstant),
			pages:              [][]ghcr.PackageVersion{{taggedVersion(1, "v1")}},
			dryRun:             true,
			expectedListCalls:  2,
			expectedDeletedIDs: []string{},
			expectedExamined:   1,
		},
		{
			name:               "untagged_version_after_tagged_one_is_deleted",
			owner:              ghcr.NewUserOwner(testUserNameConstant),
			pages:              [][]ghcr.PackageVersion{{taggedVersion(1, "v1"), untaggedVersion(2)}},
			expectedListCalls:  2,
			expectedDeletedIDs: []string{"2"},
			expectedOwnerPath:  "users/user",
			expectedExamined:   2,
			expectedUntagged:   1,
			expectedDeleted:    1,
		},
		{
			name:               "organization_untagged_versions_are_deleted_in_order",
			owner:              ghcr.NewOrganizationOwner(testOrganizationNameConstant),
			pages:              [][]ghcr.PackageVersion{{untaggedVersion(2), untaggedVersion(3)}},
			expectedListCalls:  2,
			expectedDeletedIDs: []string{"2", "3"},
			expectedOwnerPath:  "orgs/org",
			expectedExamined:   2,
			expectedUntagged:   2,
			expectedDeleted:    2,
		},
		{
			name:  "pagination_stops_on_first_empty_page",
			owner: ghcr.NewUserOwner(testUserNameConstant),
			pages: [][]ghcr.PackageVersion{
				{untaggedVersion(1), taggedVersion(2, "v2")},
				{untaggedVersion(3)},
				{},
				{untaggedVersion(4)},
			},
			expectedListCalls:  3,
			expectedDeletedIDs: []string{"1", "3"},
			expectedOwnerPath:  "users/user",
			expectedExamined:   3,
			expectedUntagged:   2,
			expectedDeleted:    2,
		},
		{
			name:                 "delete_failure_does_not_stop_later_deletions",
			owner:                ghcr.NewOrganizationOwner(testOrganizationNameConstant),
			pages:                [][]ghcr.PackageVersion{{untaggedVersion(5), untaggedVersion(6), untaggedVersion(7)}},
			deleteErrors:         map[string]error{"6": errors.New("connection reset")},
			expectedListCalls:    2,
			expectedDeletedIDs:   []string{"5", "6", "7"},
			expectedOwnerPath:    "orgs/org",
			expectedExamined:     3,
			expectedUntagged:     3,
			expectedDeleted:      2,
			expectedFailedDelete: 1,
		},
		{
			name:               "dry_run_never_deletes",
			owner:              ghcr.NewUserOwner(testUserNameConstant),
			pages:              [][]ghcr.PackageVersion{{untaggedVersion(8), untaggedVersion(9)}},
			dryRun:             true,
			expectedListCalls:  2,
			expectedDeletedIDs: []string{},
			expectedExamined:   2,
			expectedUntagged:   2,
		},
		{
			name:               "empty_package_stops_immediately",
			owner:              ghcr.NewUserOwner(testUserNameConstant),
			pages:              nil,
			expectedListCalls:  1,
			expectedDeletedIDs: []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := &stubRepository{
				pagesByPackage:   map[string][][]ghcr.PackageVersion{testPackageNameConstant: testCase.pages},
				deleteErrorsByID: testCase.deleteErrors,
			}
			service, _ := newObservedService(testInstance, repository)

			result, cleanError := service.CleanPackage(context.Background(), testCase.owner, testPackageNameConstant, testCase.dryRun)
			require.NoError(testInstance, cleanError)

			require.Len(testInstance, repository.listCalls, testCase.expectedListCalls)
			for callIndex, call := range repository.listCalls {
				require.Equal(testInstance, callIndex+1, call.page)
				require.Equal(testInstance, testPackageNameConstant, call.packageName)
				require.Equal(testInstance, testCase.owner, call.owner)
			}

			require.Equal(testInstance, testCase.expectedDeletedIDs, repository.deletedIDs())
			for _, call := range repository.deleteCalls {
				require.Equal(testInstance, testCase.expectedOwnerPath, call.ownerPath)
				require.Equal(testInstance, testPackageNameConstant, call.packageName)
			}

			require.Equal(testInstance, testCase.expectedListCalls, result.PagesFetched)
			require.Equal(testInstance, testCase.expectedExamined, result.VersionsExamined)
			require.Equal(testInstance, testCase.expectedUntagged, result.UntaggedVersions)
			require.Equal(testInstance, testCase.expectedDeleted, result.DeletedVersions)
			require.Equal(testInstance, testCase.expectedFailedDelete, result.FailedDeletions())
			require.Equal(testInstance, testCase.dryRun, result.DryRun)
			require.True(testInstance, result.Succeeded())
		})
	}
}

func TestCleanPackageDryRunLogsEveryCandidate(testInstance *testing.T) {
	repository := &stubRepository{
		pagesByPackage: map[string][][]ghcr.PackageVersion{
			testPackageNameConstant: {{untaggedVersion(1), taggedVersion(2, testTaggedVersionTagConstant), untaggedVersion(3)}},
		},
	}
	service, observedLogs := newObservedService(testInstance, repository)

	result, cleanError := service.CleanPackage(context.Background(), ghcr.NewUserOwner(testUserNameConstant), testPackageNameConstant, true)
	require.NoError(testInstance, cleanError)
	require.Empty(testInstance, repository.deleteCalls)
	require.Len(testInstance, result.CandidateVersions, 2)

	deletingEntries := observedLogs.FilterMessage(testDeletingLogMessageConstant).All()
	require.Len(testInstance, deletingEntries, 2)
	expectedVersionIDs := []int64{1, 3}
	for entryIndex, entry := range deletingEntries {
		require.Equal(testInstance, zapcore.InfoLevel, entry.Level)
		contextMap := entry.ContextMap()
		require.Equal(testInstance, true, contextMap["dry_run"])
		require.Equal(testInstance, testUserNameConstant, contextMap["owner"])
		require.Equal(testInstance, testPackageNameConstant, contextMap["package"])
		require.Equal(testInstance, expectedVersionIDs[entryIndex], contextMap["version_id"])
	}
}

func TestCleanPackageLogsDeleteFailures(testInstance *testing.T) {
	repository := &stubRepository{
		pagesByPackage:   map[string][][]ghcr.PackageVersion{testPackageNameConstant: {{untaggedVersion(4)}}},
		deleteErrorsByID: map[string]error{"4": errors.New("timeout")},
	}
	service, observedLogs := newObservedService(testInstance, repository)

	result, cleanError := service.CleanPackage(context.Background(), ghcr.NewUserOwner(testUserNameConstant), testPackageNameConstant, false)
	require.NoError(testInstance, cleanError)
	require.Equal(testInstance, 1, result.FailedDeletions())
	require.ErrorContains(testInstance, result.DeletionFailures, "timeout")

	warningEntries := observedLogs.FilterMessage(testDeleteFailedMessageConstant).FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(testInstance, warningEntries, 1)
}

func TestCleanPackageListFailureAbortsPackage(testInstance *testing.T) {
	owner := ghcr.NewUserOwner(testUserNameConstant)
	repository := &stubRepository{
		pagesByPackage: map[string][][]ghcr.PackageVersion{testPackageNameConstant: {{untaggedVersion(1)}}},
		listErrors: map[string]error{
			testPackageNameConstant: &ghcr.PackageNotFoundError{Owner: owner, PackageName: testPackageNameConstant},
		},
	}
	service, _ := newObservedService(testInstance, repository)

	_, cleanError := service.CleanPackage(context.Background(), owner, testPackageNameConstant, false)
	require.Error(testInstance, cleanError)
	require.ErrorContains(testInstance, cleanError, "failed to get versions from registry")

	var notFoundError *ghcr.PackageNotFoundError
	require.ErrorAs(testInstance, cleanError, &notFoundError)
	require.Equal(testInstance, testPackageNameConstant, notFoundError.PackageName)
	require.Empty(testInstance, repository.deleteCalls)
	require.Len(testInstance, repository.listCalls, 1)
}

func TestExecuteValidatesOptions(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       packages.CleanupOptions
		expectedError error
	}{
		{
			name:          "missing_owner",
			options:       packages.CleanupOptions{PackageNames: []string{testPackageNameConstant}},
			expectedError: packages.ErrOwnerRequired,
		},
		{
			name:          "missing_packages",
			options:       packages.CleanupOptions{Owner: ghcr.NewUserOwner(testUserNameConstant)},
			expectedError: packages.ErrPackageNamesRequired,
		},
		{
			name: "blank_package",
			options: packages.CleanupOptions{
				Owner:        ghcr.NewUserOwner(testUserNameConstant),
				PackageNames: []string{testPackageNameConstant, "  "},
			},
			expectedError: packages.ErrBlankPackageName,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := &stubRepository{}
			service, _ := newObservedService(testInstance, repository)

			_, executeError := service.Execute(context.Background(), testCase.options)
			require.ErrorIs(testInstance, executeError, testCase.expectedError)
			require.Empty(testInstance, repository.listCalls)
		})
	}
}

func TestExecuteContinuesAfterPackageFailure(testInstance *testing.T) {
	owner := ghcr.NewOrganizationOwner(testOrganizationNameConstant)
	repository := &stubRepository{
		pagesByPackage: map[string][][]ghcr.PackageVersion{
			testSecondPackageNameConstant: {{untaggedVersion(11)}},
		},
		listErrors: map[string]error{
			testPackageNameConstant: &ghcr.UnexpectedStatusError{StatusCode: 500},
		},
	}
	service, observedLogs := newObservedService(testInstance, repository)

	summary, executeError := service.Execute(context.Background(), packages.CleanupOptions{
		Owner:        owner,
		PackageNames: []string{testPackageNameConstant, testSecondPackageNameConstant},
	})
	require.NoError(testInstance, executeError)
	require.Len(testInstance, summary.Packages, 2)
	require.Equal(testInstance, 1, summary.FailedPackages())

	failedResult := summary.Packages[0]
	require.False(testInstance, failedResult.Succeeded())
	require.ErrorContains(testInstance, failedResult.Error, "failed to clean package org/package")
	var statusError *ghcr.UnexpectedStatusError
	require.ErrorAs(testInstance, failedResult.Error, &statusError)

	succeededResult := summary.Packages[1]
	require.True(testInstance, succeededResult.Succeeded())
	require.Equal(testInstance, 1, succeededResult.DeletedVersions)
	require.Equal(testInstance, []string{"11"}, repository.deletedIDs())

	errorEntries := observedLogs.FilterMessage(testPackageFailedMessageConstant).FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(testInstance, errorEntries, 1)
}

func TestExecuteStopsWhenContextIsCancelled(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository := &stubRepository{
		pagesByPackage: map[string][][]ghcr.PackageVersion{
			testPackageNameConstant:       {{taggedVersion(1, "v1")}, {taggedVersion(2, "v2")}},
			testSecondPackageNameConstant: {{untaggedVersion(3)}},
		},
		afterList: func(page int) {
			if page == 1 {
				cancel()
			}
		},
	}
	service, _ := newObservedService(testInstance, repository)

	summary, executeError := service.Execute(executionContext, packages.CleanupOptions{
		Owner:        ghcr.NewUserOwner(testUserNameConstant),
		PackageNames: []string{testPackageNameConstant, testSecondPackageNameConstant},
	})
	require.ErrorIs(testInstance, executeError, context.Canceled)
	require.ErrorContains(testInstance, executeError, "cleanup cancelled: ")
	require.Len(testInstance, summary.Packages, 1)
	require.Len(testInstance, repository.listCalls, 1)
	require.Empty(testInstance, repository.deleteCalls)
}
