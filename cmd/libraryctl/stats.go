package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := svc.Stats.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(snap)
			}
			head := color.New(color.Bold).SprintFunc()
			fmt.Printf("%s %d   %s %d   %s %d / %d\n",
				head("books"), snap.TotalItems, head("people"), snap.TotalPeople,
				head("open loans"), snap.OpenLoans, snap.TotalLoans)

			fmt.Println(head("\nloans by category"))
			for _, t := range snap.ByCategory {
				fmt.Printf("  %-30s %d\n", t.Label, t.Count)
			}
			fmt.Println(head("\nloans by gender"))
			for _, t := range snap.ByGender {
				fmt.Printf("  %-30s %d\n", t.Label, t.Count)
			}
			fmt.Println(head("\nmost borrowed"))
			for i, t := range snap.TopItems {
				fmt.Printf("  %d. %s (%s) %s\n", i+1, t.Title, t.Author, color.CyanString("%d", t.Count))
			}
			return nil
		},
	}
}
