package packages

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/temirov/ghcr-cleaner/internal/utils/flags"
)

const (
	reportFormatNoneValueConstant                = "none"
	reportFormatTableValueConstant               = "table"
	reportFormatYAMLValueConstant                = "yaml"
	reportFormatParseErrorTemplateConstant       = "invalid report format: %w"
	reportEncodeErrorTemplateConstant            = "failed to encode cleanup report: %w"
	reportYAMLIndentConstant                     = 2
	reportStatusSucceededConstant                = "ok"
	reportStatusFailedConstant                   = "failed"
	reportHeaderOwnerConstant                    = "OWNER"
	reportHeaderPackageConstant                  = "PACKAGE"
	reportHeaderPagesConstant                    = "PAGES"
	reportHeaderExaminedConstant                 = "EXAMINED"
	reportHeaderUntaggedConstant                 = "UNTAGGED"
	reportHeaderDeletedConstant                  = "DELETED"
	reportHeaderFailedConstant                   = "FAILED"
	reportHeaderStatusConstant                   = "STATUS"
	reportDryRunDeletedPlaceholderConstant       = "-"
	unsupportedReportFormatErrorTemplateConstant = "unsupported report format %q"
)

// ReportFormat selects how the cleanup summary is printed after a run.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatNone  ReportFormat = reportFormatNoneValueConstant
	ReportFormatTable ReportFormat = reportFormatTableValueConstant
	ReportFormatYAML  ReportFormat = reportFormatYAMLValueConstant
)

var reportFormatChoices = flags.NewChoiceSet(
	reportFormatNoneValueConstant,
	reportFormatNoneValueConstant,
	reportFormatTableValueConstant,
	reportFormatYAMLValueConstant,
)

// ParseReportFormat normalizes a report format name. Blank input selects ReportFormatNone.
func ParseReportFormat(rawValue string) (ReportFormat, error) {
	normalizedValue, normalizeError := reportFormatChoices.Normalize(rawValue)
	if normalizeError != nil {
		return "", fmt.Errorf(reportFormatParseErrorTemplateConstant, normalizeError)
	}
	return ReportFormat(normalizedValue), nil
}

// ReportFormatUsage renders the flag usage string for report formats.
func ReportFormatUsage(description string) string {
	return reportFormatChoices.Usage(description)
}

type summaryDocument struct {
	DryRun   bool              `yaml:"dry_run"`
	Packages []packageDocument `yaml:"packages"`
}

type packageDocument struct {
	Owner           string   `yaml:"owner"`
	Package         string   `yaml:"package"`
	Pages           int      `yaml:"pages"`
	Examined        int      `yaml:"examined"`
	Untagged        int      `yaml:"untagged"`
	Deleted         int      `yaml:"deleted"`
	FailedDeletions []string `yaml:"failed_deletions,omitempty"`
	Candidates      []string `yaml:"candidates,omitempty"`
	Error           string   `yaml:"error,omitempty"`
}

// WriteReport renders summary to writer in the requested format. ReportFormatNone writes nothing.
func WriteReport(writer io.Writer, format ReportFormat, summary CleanupSummary) error {
	switch format {
	case ReportFormatNone, "":
		return nil
	case ReportFormatTable:
		writeTableReport(writer, summary)
		return nil
	case ReportFormatYAML:
		return writeYAMLReport(writer, summary)
	default:
		return fmt.Errorf(unsupportedReportFormatErrorTemplateConstant, format)
	}
}

func writeTableReport(writer io.Writer, summary CleanupSummary) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{
		reportHeaderOwnerConstant,
		reportHeaderPackageConstant,
		reportHeaderPagesConstant,
		reportHeaderExaminedConstant,
		reportHeaderUntaggedConstant,
		reportHeaderDeletedConstant,
		reportHeaderFailedConstant,
		reportHeaderStatusConstant,
	})
	for _, packageResult := range summary.Packages {
		deletedValue := strconv.Itoa(packageResult.DeletedVersions)
		if packageResult.DryRun {
			deletedValue = reportDryRunDeletedPlaceholderConstant
		}
		table.Append([]string{
			packageResult.Owner.String(),
			packageResult.PackageName,
			strconv.Itoa(packageResult.PagesFetched),
			strconv.Itoa(packageResult.VersionsExamined),
			strconv.Itoa(packageResult.UntaggedVersions),
			deletedValue,
			strconv.Itoa(packageResult.FailedDeletions()),
			reportStatus(packageResult),
		})
	}
	table.Render()
}

func writeYAMLReport(writer io.Writer, summary CleanupSummary) error {
	document := summaryDocument{
		DryRun:   summary.DryRun,
		Packages: make([]packageDocument, 0, len(summary.Packages)),
	}
	for _, packageResult := range summary.Packages {
		document.Packages = append(document.Packages, newPackageDocument(packageResult))
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(reportYAMLIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, closeError)
	}
	return nil
}

func newPackageDocument(packageResult PackageResult) packageDocument {
	document := packageDocument{
		Owner:    packageResult.Owner.String(),
		Package:  packageResult.PackageName,
		Pages:    packageResult.PagesFetched,
		Examined: packageResult.VersionsExamined,
		Untagged: packageResult.UntaggedVersions,
		Deleted:  packageResult.DeletedVersions,
	}
	if packageResult.DeletionFailures != nil {
		for _, deletionError := range packageResult.DeletionFailures.Errors {
			document.FailedDeletions = append(document.FailedDeletions, deletionError.Error())
		}
	}
	if packageResult.DryRun {
		for _, candidate := range packageResult.CandidateVersions {
			document.Candidates = append(document.Candidates, candidate.ShortName())
		}
	}
	if packageResult.Error != nil {
		document.Error = packageResult.Error.Error()
	}
	return document
}

func reportStatus(packageResult PackageResult) string {
	if packageResult.Succeeded() {
		return reportStatusSucceededConstant
	}
	return reportStatusFailedConstant
}
