package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/paths"
)

var (
	modeProject bool
	modeSession string
)

var modeCmd = &cobra.Command{
	Use:   "mode [local|remote|readonly]",
	Short: "Show or set the operating mode",
	Long: `Show or set the operating mode.

With no argument, prints the effective mode for the current directory.
With an argument, writes the global mode (or the project/session mode
when --project or --session is given). Running hooks pick the change up
on their next poll tick.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMode,
}

func init() {
	rootCmd.AddCommand(modeCmd)

	modeCmd.Flags().BoolVar(
		&modeProject,
		"project",
		false,
		"Apply to the current project (.telegate/mode) instead of globally",
	)
	modeCmd.Flags().StringVar(
		&modeSession,
		"session",
		"",
		"Apply to the given session id instead of globally",
	)
}

func runMode(_ *cobra.Command, args []string) error {
	resolver, err := paths.NewResolver()
	if err != nil {
		return errors.Wrap(err, "failed to resolve state directory")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get working directory")
	}

	modes := mode.NewResolver(resolver, workDir)

	if len(args) == 0 {
		fmt.Println(modes.Current(modeSession))

		return nil
	}

	target, err := mode.ModeString(args[0])
	if err != nil {
		return errors.Wrapf(err, "invalid mode %q", args[0])
	}

	switch {
	case modeSession != "":
		err = modes.SetSession(modeSession, target)
	case modeProject:
		err = modes.SetProject(target)
	default:
		err = modes.SetGlobal(target)
	}

	if err != nil {
		return errors.Wrap(err, "failed to write mode")
	}

	fmt.Printf("mode set to %s\n", target)

	return nil
}
