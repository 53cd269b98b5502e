// Package flags provides helpers for binding shared flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
)

const (
	// DryRunFlagName is the long name of the dry-run flag.
	DryRunFlagName = "dry-run"
	// DryRunFlagShorthand is the single-letter alias of the dry-run flag.
	DryRunFlagShorthand = "n"

	dryRunFlagUsageConstant = "Report deletion candidates without deleting them"
)

// BindDryRunFlag attaches --dry-run/-n to the command's local flags.
func BindDryRunFlag(command *cobra.Command, defaultValue bool) {
	if command == nil {
		return
	}
	command.Flags().BoolP(DryRunFlagName, DryRunFlagShorthand, defaultValue, dryRunFlagUsageConstant)
}

// ResolveDryRun returns the flag value when it was set explicitly and the configured value otherwise.
func ResolveDryRun(command *cobra.Command, configuredValue bool) (bool, error) {
	if command == nil {
		return configuredValue, nil
	}

	flagSet := command.Flags()
	if flagSet.Lookup(DryRunFlagName) == nil || !flagSet.Changed(DryRunFlagName) {
		return configuredValue, nil
	}

	return flagSet.GetBool(DryRunFlagName)
}
