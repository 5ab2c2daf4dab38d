package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStrategiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies and their default parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDEFAULT PARAMETERS")
			for _, name := range a.registry.Names() {
				defaults, err := a.registry.Defaults(name)
				if err != nil {
					return err
				}
				pairs := make([]string, 0, len(defaults))
				for _, k := range defaults.Keys() {
					pairs = append(pairs, fmt.Sprintf("%s=%v", k, defaults[k]))
				}
				fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(pairs, " "))
			}
			return tw.Flush()
		},
	}
}
