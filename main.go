// Command loopbridge is a diagnostics front end for the reporting layer: it
// checks Nightscout connectivity and inspects the on-disk settings without
// touching a running controller.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcode/loopbridge/internal/nightscout"
	"github.com/mrcode/loopbridge/internal/settings"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "loopbridge",
		Short:         "Diagnostics for the Nightscout reporting layer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(checkCommand())
	root.AddCommand(settingsCommand())
	return root
}

func checkCommand() *cobra.Command {
	var (
		url      string
		secret   string
		token    string
		useToken bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the Nightscout endpoint is reachable and accepts our credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				return fmt.Errorf("--url is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client := nightscout.NewClient(url, secret, token, useToken)
			status, err := client.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("checking %s: %w", url, err)
			}

			fmt.Printf("Connected to %s (Nightscout %s, status %s)\n", status.Name, status.Version, status.Status)
			if !status.APIEnabled {
				fmt.Println("Warning: the API is disabled on this server, uploads will fail")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Nightscout base URL")
	cmd.Flags().StringVar(&secret, "api-secret", "", "API secret (hashed before transmission)")
	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().BoolVar(&useToken, "use-token", false, "Authenticate with the token instead of the secret")
	return cmd
}

func settingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect the persisted therapy settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := settings.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the settings raw form",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := settings.ConfigPath()
			if err != nil {
				return err
			}

			store := settings.NewStore(path)
			if err := store.Load(); err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}

			raw, err := store.RawValue()
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	})

	return cmd
}
