package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/asrq/internal/api"
	"github.com/phrazzld/asrq/internal/fetch"
	"github.com/phrazzld/asrq/internal/service/auth"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	server string
	token  string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "API base URL (defaults to server.base_url)")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("ASRQ_TOKEN"), "Bearer token for the API")
}

func (f *clientFlags) client(ctx *commandContext) (*apiClient, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	server := f.server
	if server == "" {
		server = cfg.Server.BaseURL
	}
	return newAPIClient(server, f.token)
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "submit <file|url>",
		Short: "Submit an audio file or URL for recognition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client(ctx)
			if err != nil {
				return err
			}

			source := args[0]
			if !fetch.IsURL(source) {
				// The server resolves paths itself; send an absolute one.
				if abs, err := filepath.Abs(source); err == nil {
					source = abs
				}
			}

			resp, err := client.Submit(cmd.Context(), source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", resp.Message, resp.TaskID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var flags clientFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the state of a submitted task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client(ctx)
			if err != nil {
				return err
			}

			resp, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("task %s not found", args[0])
				}
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(statusRows(resp)))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func statusRows(resp *api.TaskStatusResponse) [][2]string {
	rows := [][2]string{
		{"Task", resp.TaskID},
		{"Status", resp.Status},
		{"Created", resp.CreatedAt.Local().Format(time.RFC3339)},
		{"Updated", resp.UpdatedAt.Local().Format(time.RFC3339)},
	}
	if resp.Result != nil {
		rows = append(rows, [2]string{"Result", *resp.Result})
	}
	return rows
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Auth.AuthEnabled() {
				return fmt.Errorf("authentication is disabled; set auth.jwt_secret first")
			}

			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	return cmd
}
