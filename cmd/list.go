package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/flowrunner/internal/flow"
)

func newListCmd() *cobra.Command {
	var verbose bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the built-in and file-loaded cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			cases, err := loadCases(cfg)
			if err != nil {
				return err
			}
			return printCases(cmd.OutOrStdout(), cases, verbose)
		},
	}

	listCmd.Flags().String("cases-dir", "", "Directory of YAML case files")
	listCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every step of each case")
	return listCmd
}

func printCases(w io.Writer, cases []flow.TestCase, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEPS\tTAGS\tSTART")
	for _, tc := range cases {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", tc.Name(), tc.Len(), strings.Join(tc.Tags(), ","), tc.StartURL())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !verbose {
		return nil
	}

	for _, tc := range cases {
		fmt.Fprintf(w, "\n%s\n", tc.Name())
		if d := tc.Description(); d != "" {
			fmt.Fprintf(w, "  %s\n", d)
		}
		for i, s := range tc.Steps() {
			fmt.Fprintf(w, "  %2d. %s\n", i+1, s)
		}
		fmt.Fprintf(w, "  => %s\n", tc.Assertion().FailureMessage())
	}
	return nil
}
