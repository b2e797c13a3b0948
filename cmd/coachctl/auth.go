package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	authCmd := &cobra.Command{Use: "auth", Short: "Account operations"}

	var email, password string
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and print the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postCredentials("/auth/signup", email, password)
		},
	}
	signupCmd.Flags().StringVarP(&email, "email", "e", "", "Account email (required)")
	signupCmd.Flags().StringVarP(&password, "password", "p", "", "Account password (required)")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")
	authCmd.AddCommand(signupCmd)

	var loginEmail, loginPassword string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postCredentials("/auth/login", loginEmail, loginPassword)
		},
	}
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (required)")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
	authCmd.AddCommand(loginCmd)

	var refreshToken string
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkResp(newClient().R().
				SetHeader("Content-Type", "application/json").
				SetBody(map[string]string{"refreshToken": refreshToken}).
				Post("/auth/refresh"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	refreshCmd.Flags().StringVarP(&refreshToken, "refresh-token", "r", "", "Refresh token (required)")
	_ = refreshCmd.MarkFlagRequired("refresh-token")
	authCmd.AddCommand(refreshCmd)

	rootCmd.AddCommand(authCmd)
}

func postCredentials(path, email, password string) error {
	data, err := checkResp(newClient().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"email": email, "password": password}).
		Post(path))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
	return nil
}
