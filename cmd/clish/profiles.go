package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/clisession/pkg/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List known device families",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tALIASES\tMODES\tSECRET")
		for _, p := range profile.Default.Profiles() {
			modes := make([]string, 0, 3)
			for _, m := range p.Modes() {
				modes = append(modes, m.String())
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", p.Name, strings.Join(p.Aliases, ","), strings.Join(modes, ","), p.SecretRequired)
		}
		return tw.Flush()
	},
}
