package main

import (
	"fmt"

	"github.com/UkralStul/content-alchemy/internal/digest"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/spf13/cobra"
)

var digestPreview bool

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send today's digest once (skipped if it was already sent today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.store.Close()

		if digestPreview {
			d, err := a.digest.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), digest.Render(d))
			return nil
		}

		sent, err := a.runner.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if !sent {
			fmt.Fprintln(cmd.OutOrStdout(), "digest skipped: already sent today or no recipients")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "digest sent")
		return nil
	},
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "List evergreen posts ready to resurface",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.store.Close()

		posts, err := a.recycler.Eligible(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(posts) == 0 {
			fmt.Fprintln(out, "no evergreen posts are due")
			return nil
		}
		for _, p := range posts {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.ID, p.Platform, p.RepurposeDate.In(a.validator.Location()).Format(schedule.DateLayout), p.PostTitle)
		}
		return nil
	},
}

func init() {
	digestCmd.Flags().BoolVar(&digestPreview, "preview", false, "print the digest without sending it")
}
