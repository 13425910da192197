// Command smlc reads an SML program from standard input and writes the
// generated assembly text to standard output. It is the direct
// descendant of the teacher's flag-based main-driver, rebuilt around
// cobra for the richer CLI surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanundheim/smlc/compiler"
	"github.com/aidanundheim/smlc/internal/diag"
)

// Errors reaching here were already logged by the diagnostic sink that
// produced them; main only needs to translate failure into exit status.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "smlc",
		Short: "smlc compiles an SML program read from standard input into assembly text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := diag.Default()

			comp := compiler.New(cmd.InOrStdin(), sink)
			comp.SetDebug(debug)

			out, err := comp.Compile()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "annotate generated assembly with source statement comments")

	return cmd
}
