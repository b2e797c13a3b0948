package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	chatCmd := &cobra.Command{Use: "chat", Short: "Session and message operations"}

	var coachID string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session with a coach",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().
				SetHeader("Content-Type", "application/json").
				SetBody(map[string]string{"coachId": coachID}).
				Post("/sessions"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	startCmd.Flags().StringVarP(&coachID, "coach", "c", "", "Coach ID (required)")
	_ = startCmd.MarkFlagRequired("coach")
	chatCmd.AddCommand(startCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for the authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().Get("/sessions"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	chatCmd.AddCommand(listCmd)

	var sessionID, content string
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and print the assistant reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().
				SetHeader("Content-Type", "application/json").
				SetBody(map[string]string{"content": content}).
				Post("/sessions/" + sessionID + "/messages"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID (required)")
	sendCmd.Flags().StringVarP(&content, "message", "m", "", "Message content (required)")
	_ = sendCmd.MarkFlagRequired("session")
	_ = sendCmd.MarkFlagRequired("message")
	chatCmd.AddCommand(sendCmd)

	rootCmd.AddCommand(chatCmd)
}
