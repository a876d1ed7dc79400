package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jobrunner/s2tile/internal/domain"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the resolution profiles and their bands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printProfiles(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func printProfiles(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tFOLDER\tFUNCTION\tBANDS")
	for _, tag := range domain.ProfileTags() {
		p := domain.Profiles[tag]
		bands, err := p.Bands()
		if err != nil {
			return err
		}
		names := make([]string, len(bands))
		for i, b := range bands {
			names[i] = b.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Tag, p.Folder(), p.FunctionTemplate, strings.Join(names, ","))
	}
	return tw.Flush()
}
