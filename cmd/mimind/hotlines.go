package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var hotlinesCmd = &cobra.Command{
	Use:   "hotlines [locale]",
	Short: "Show the crisis hotline for a locale, or the whole table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		hotlines, err := loadHotlines(cfg)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return printJSON(cmd.OutOrStdout(), hotlines.Resolve(args[0]))
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCALE\tNAME\tPHONE")
		for _, locale := range hotlines.Locales() {
			rec := hotlines.Resolve(locale)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", locale, rec.Name, rec.Phone)
		}
		fb := hotlines.Fallback()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", "(default)", fb.Name, fb.Phone)
		return tw.Flush()
	},
}
