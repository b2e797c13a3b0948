package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	coachesCmd := &cobra.Command{Use: "coaches", Short: "Coach catalog operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available coaches",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().Get("/coaches"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	coachesCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get COACH_ID",
		Short: "Get a coach by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().Get("/coaches/" + args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	coachesCmd.AddCommand(getCmd)

	rootCmd.AddCommand(coachesCmd)
}
