// Package packages removes untagged container package versions from GHCR.
//
// CleanupService walks every page of versions for each requested package and
// deletes the ones without tags, or only logs them in dry-run mode. The package
// also provides CommandBuilder for the purge Cobra command, its configuration,
// token resolution, and the optional table and YAML run reports.
package packages
