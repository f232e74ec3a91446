package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vipguy/Bing4/internal/config"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/storage"
)

// Setting names accepted by "settings set"
const (
	settingAuthCookie     = "auth-cookie"
	settingStoragePath    = "storage-path"
	settingImagesPerStyle = "images-per-style"
)

// NewSettingsCmd creates the settings command
func NewSettingsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show local settings",
		Long: `Show or change the settings stored in the local database. These are
the same values edited in the Settings view of the UI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.Prefs.LoadSettings()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Setting", "Value"})
			t.AppendRow(table.Row{settingAuthCookie, maskSecret(s.AuthCookie)})
			t.AppendRow(table.Row{settingStoragePath, s.StoragePath})
			t.AppendRow(table.Row{settingImagesPerStyle, s.ImagesPerStyle})
			t.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set NAME VALUE",
		Short:     "Change a local setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{settingAuthCookie, settingStoragePath, settingImagesPerStyle},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			name, value := args[0], args[1]
			switch name {
			case settingAuthCookie:
				err = app.Prefs.SetAuthCookie(value)
			case settingStoragePath:
				err = app.Prefs.SetStoragePath(value)
			case settingImagesPerStyle:
				n, convErr := strconv.Atoi(value)
				if convErr != nil {
					return fmt.Errorf("%s must be a number between %d and %d",
						settingImagesPerStyle, model.MinImagesPerStyle, model.MaxImagesPerStyle)
				}
				err = app.Prefs.SetImagesPerStyle(n)
			default:
				return fmt.Errorf("unknown setting %q", name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", name)
			return nil
		},
	})

	return cmd
}

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Storage.Minio.SecretKey != "" {
				shown.Storage.Minio.SecretKey = maskSecret(shown.Storage.Minio.SecretKey)
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to ~/.bing4/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.SaveDefaultToGlobal(force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

// failedDownloader reports a storage setup error for every download
type failedDownloader struct {
	err error
}

func (f failedDownloader) DownloadSession(ctx context.Context, sess model.Session) ([]storage.Result, error) {
	return nil, f.err
}
