package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vipguy/Bing4/internal/generate"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/poller"
)

var errInvalidCookie = errors.New("cookie is invalid or expired")

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// waitForPollers blocks until every poller has stopped or ctx ends
func waitForPollers(ctx context.Context, m *poller.Manager) {
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.StopAll()
		<-done
	}
}

// sessionErr turns a backend 404 into a plain not-found message
func sessionErr(id string, err error) error {
	if pixel.IsNotFound(err) {
		return fmt.Errorf("session %s not found", id)
	}
	return fmt.Errorf("session %s: %w", id, err)
}

// NewStylesCmd creates the styles command
func NewStylesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List available art styles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			styles, err := app.Client.Styles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load styles: %w", err)
			}
			renderStyles(cmd.OutOrStdout(), styles)
			return nil
		},
	}
}

// NewSessionsCmd creates the sessions command
func NewSessionsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recent generation sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Orchestrator.Reload(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load sessions: %w", err)
			}
			sessions := app.Store.List()
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No generation sessions yet. Create some images to see them here!")
				return nil
			}
			renderSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
}

// generateOptions are shared by generate and batch
type generateOptions struct {
	styles []string
	images int
	cookie string
	wait   bool
}

func (o *generateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.styles, "style", "s", nil, "Style to apply; repeat or comma-separate for several")
	cmd.Flags().IntVarP(&o.images, "images", "n", model.DefaultImagesPerStyle, "Images per style (1-4, default from settings)")
	cmd.Flags().StringVar(&o.cookie, "cookie", "", "Auth token (default from settings)")
	cmd.Flags().BoolVarP(&o.wait, "wait", "w", false, "Poll until every session finishes")
}

// resolve fills defaults from local settings
func (o *generateOptions) resolve(cmd *cobra.Command, app *App) (string, error) {
	if !cmd.Flags().Changed("images") {
		s, err := app.Prefs.LoadSettings()
		if err != nil {
			return "", err
		}
		o.images = s.ImagesPerStyle
	}
	return app.Cookie(o.cookie)
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Create a generation session from one prompt",
		Long: `Create a generation session from one prompt.

Without styles one unstyled group is generated, so the total is
max(1, styles) x images-per-style.

Examples:
  bing4 generate "a red fox in snow"
  bing4 generate "a red fox" -s cartoon -s realistic -n 2 --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			cookie, err := opts.resolve(cmd, app)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.wait {
				app.Pollers.SetListener(newProgressPrinter(out).Listener())
			}

			sess, err := app.Orchestrator.Submit(ctx, generate.Request{
				Prompt:         strings.Join(args, " "),
				Styles:         splitStyles(opts.styles),
				ImagesPerStyle: opts.images,
				AuthCookie:     cookie,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created session %s (%s)\n", sess.ID, pluralize(sess.TotalImages, "image"))
			if !opts.wait {
				return nil
			}

			waitForPollers(ctx, app.Pollers)
			renderSessions(out, app.Store.List())
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewBatchCmd creates the batch command
func NewBatchCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Create one session per prompt in a .txt or .csv file",
		Long: `Upload a prompt file (one prompt per line) to the backend for parsing,
then create one session per prompt with the same styles and count.

Examples:
  bing4 batch prompts.txt
  bing4 batch prompts.csv -s anime,noir -n 1 --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			cookie, err := opts.resolve(cmd, app)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to parse file: %w", err)
			}
			name := filepath.Base(args[0])
			prompts, err := app.Client.UploadPrompts(ctx, name, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("failed to parse file: %w", err)
			}
			fmt.Fprintf(out, "Uploaded: %s (%d prompts)\n", name, len(prompts))

			styles := splitStyles(opts.styles)
			summary := generate.Summary{Prompts: len(prompts), Styles: len(styles), ImagesPerStyle: opts.images}
			for _, line := range summary.Lines() {
				fmt.Fprintln(out, "  • "+line)
			}

			if opts.wait {
				app.Pollers.SetListener(newProgressPrinter(out).Listener())
			}
			sessions, err := app.Orchestrator.SubmitBatch(ctx, generate.BatchRequest{
				Prompts:        prompts,
				Styles:         styles,
				ImagesPerStyle: opts.images,
				AuthCookie:     cookie,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", pluralize(len(sessions), "session"))

			if opts.wait {
				waitForPollers(ctx, app.Pollers)
			}
			renderSessions(out, app.Store.List())
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewWatchCmd creates the watch command
func NewWatchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID...",
		Short: "Poll sessions until they finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			app.Pollers.SetListener(newProgressPrinter(out).Listener())
			for _, id := range args {
				sess, err := app.Track(ctx, id)
				if err != nil {
					return sessionErr(id, err)
				}
				if sess.Status == model.StatusProcessing {
					app.Pollers.Start(id)
				}
			}

			waitForPollers(ctx, app.Pollers)
			renderSessions(out, app.Store.List())
			return nil
		},
	}
}

// NewDownloadCmd creates the download command
func NewDownloadCmd(root *rootOptions) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Save the completed images of a session",
		Long: `Save every completed image of a session as pixel_image_<id>.png.

Images go to --dir, the storage path from settings, or the configured
MinIO bucket when storage.backend is "minio". Images already saved to the
same place are skipped unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if dir == "" {
				s, err := app.Prefs.LoadSettings()
				if err != nil {
					return err
				}
				dir = s.StoragePath
			}

			sess, err := app.Track(ctx, args[0])
			if err != nil {
				return sessionErr(args[0], err)
			}
			d, err := app.Downloader(dir)
			if err != nil {
				return err
			}
			d.SetForce(force)
			results, dlErr := d.DownloadSession(ctx, *sess)
			if len(results) == 0 && dlErr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No completed images to download")
				return nil
			}
			renderDownloads(cmd.OutOrStdout(), results)
			return dlErr
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to save into (default: storage path from settings)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Save again even if already downloaded")
	return cmd
}

// NewDownloadsCmd creates the downloads command
func NewDownloadsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "downloads ID",
		Short: "List where the images of a session were saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Prefs.SessionDownloads(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No downloads recorded for %s\n", args[0])
				return nil
			}
			renderLedger(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

// NewTestCookieCmd creates the test-cookie command
func NewTestCookieCmd(root *rootOptions) *cobra.Command {
	var cookie string

	cmd := &cobra.Command{
		Use:   "test-cookie",
		Short: "Check whether the Bing auth token is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.Cookie(cookie)
			if err != nil {
				return err
			}
			valid, err := app.Client.TestCookie(cmd.Context(), c)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "✗ Cookie test failed: "+pixel.Message(err))
				return fmt.Errorf("cookie test: %w", err)
			}
			if !valid {
				fmt.Fprintln(cmd.OutOrStdout(), "✗ Cookie is invalid or expired")
				return errInvalidCookie
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cookie is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&cookie, "cookie", "", "Token to test (default from settings)")
	return cmd
}

// NewPingCmd creates the ping command
func NewPingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Print the backend banner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(root, logToStderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			msg, err := app.Client.Info(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend unreachable at %s: %w", app.Config.BaseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", msg, app.Config.BaseURL)
			return nil
		},
	}
}
