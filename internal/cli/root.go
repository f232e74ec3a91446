// Package cli holds the bing4 command tree. The root command runs the
// terminal UI; subcommands expose the same operations for scripting.
package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vipguy/Bing4/internal/tui"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	baseURL string
	debug   bool
}

// NewRootCmd creates the bing4 command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bing4",
		Short: "Terminal client for the Pixel image generator",
		Long: `Create AI images from text prompts against a Pixel backend.

Run without arguments to open the interactive UI, or use a subcommand:
  styles       List available styles
  generate     Create a session from one prompt
  batch        Create sessions from a prompt file
  sessions     List recent sessions
  watch        Follow a session until it finishes
  download     Save the completed images of a session
  downloads    List where a session's images were saved
  test-cookie  Check the Bing auth token
  settings     Show or change local settings
  config       Show or initialise the config file
  ping         Print the backend banner
  mock-server  Run an in-memory backend for local development

Examples:
  bing4
  bing4 generate "a red fox in snow" -s cartoon -s realistic -n 2 --wait
  bing4 batch prompts.txt --style anime
  bing4 mock-server --addr :8001`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Pixel backend URL (default from config)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging and the debug panel")

	cmd.AddCommand(NewStylesCmd(opts))
	cmd.AddCommand(NewSessionsCmd(opts))
	cmd.AddCommand(NewGenerateCmd(opts))
	cmd.AddCommand(NewBatchCmd(opts))
	cmd.AddCommand(NewWatchCmd(opts))
	cmd.AddCommand(NewDownloadCmd(opts))
	cmd.AddCommand(NewDownloadsCmd(opts))
	cmd.AddCommand(NewTestCookieCmd(opts))
	cmd.AddCommand(NewSettingsCmd(opts))
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPingCmd(opts))
	cmd.AddCommand(NewMockServerCmd())

	return cmd
}

// Execute runs the command tree and exits non-zero on failure
func Execute(version string) {
	if err := NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(opts *rootOptions) error {
	app, err := newApp(opts, logToFile, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	bridge := tui.NewEventBridge(256)
	app.Pollers.SetListener(bridge.Listener())

	m := tui.NewRootModel(tui.Options{
		Backend:   app.Client,
		Submitter: app.Orchestrator,
		Store:     app.Store,
		Pollers:   app.Pollers,
		Prefs:     app.Prefs,
		NewDownloader: func(dir string) tui.SessionDownloader {
			d, err := app.Downloader(dir)
			if err != nil {
				return failedDownloader{err: err}
			}
			return d
		},
		Events: bridge.Events(),
		Debug:  opts.debug,
		Logger: app.Logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	app.Pollers.StopAll()
	bridge.Close()
	if dropped := bridge.Dropped(); dropped > 0 {
		app.Logger.Debug("poll events dropped", "count", dropped)
	}
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
