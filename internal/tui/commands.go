package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vipguy/Bing4/internal/generate"
	"github.com/vipguy/Bing4/internal/localstore"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/poller"
	"github.com/vipguy/Bing4/internal/storage"
)

// requestTimeout bounds a single UI-initiated call
const requestTimeout = 2 * time.Minute

// Backend is the subset of the Pixel client the UI calls directly
type Backend interface {
	Styles(ctx context.Context) ([]string, error)
	TestCookie(ctx context.Context, cookie string) (bool, error)
	UploadPrompts(ctx context.Context, filename string, r io.Reader) ([]string, error)
}

// Submitter creates sessions and reloads the list
type Submitter interface {
	Submit(ctx context.Context, req generate.Request) (*model.Session, error)
	SubmitBatch(ctx context.Context, req generate.BatchRequest) ([]model.Session, error)
	Reload(ctx context.Context) error
}

// PollControl lets the gallery inspect and cancel pollers
type PollControl interface {
	Stop(id string) bool
	IsActive(id string) bool
	Active() int
}

// Preferences is the client-local settings store
type Preferences interface {
	LoadSettings() (localstore.Settings, error)
	SetAuthCookie(v string) error
	SetStoragePath(v string) error
	SetImagesPerStyle(n int) error
}

// SessionDownloader saves the completed images of a session
type SessionDownloader interface {
	DownloadSession(ctx context.Context, sess model.Session) ([]storage.Result, error)
}

// Messages

type stylesLoadedMsg struct {
	styles []string
	err    error
}

type cookieTestedMsg struct {
	cookie string
	valid  bool
	err    error
}

type submittedMsg struct {
	session *model.Session
	err     error
}

type batchSubmittedMsg struct {
	sessions []model.Session
	err      error
}

type promptsUploadedMsg struct {
	filename string
	prompts  []string
	err      error
}

type sessionsReloadedMsg struct {
	err error
}

type downloadedMsg struct {
	sessionID string
	results   []storage.Result
	err       error
}

type pollEventsMsg struct {
	events []poller.Event
}

type pollingStoppedMsg struct{}

type spinnerTickMsg struct{}

func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func loadStylesCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		styles, err := b.Styles(ctx)
		return stylesLoadedMsg{styles: styles, err: err}
	}
}

func testCookieCmd(b Backend, cookie string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		valid, err := b.TestCookie(ctx, cookie)
		return cookieTestedMsg{cookie: cookie, valid: valid, err: err}
	}
}

func submitCmd(s Submitter, req generate.Request) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, err := s.Submit(ctx, req)
		return submittedMsg{session: sess, err: err}
	}
}

func submitBatchCmd(s Submitter, req generate.BatchRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sessions, err := s.SubmitBatch(ctx, req)
		return batchSubmittedMsg{sessions: sessions, err: err}
	}
}

func reloadCmd(s Submitter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sessionsReloadedMsg{err: s.Reload(ctx)}
	}
}

// uploadPromptsCmd reads a local prompt file and has the server parse it
func uploadPromptsCmd(b Backend, path string) tea.Cmd {
	return func() tea.Msg {
		path = expandHome(path)
		name := filepath.Base(path)
		f, err := os.Open(path)
		if err != nil {
			return promptsUploadedMsg{filename: name, err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		prompts, err := b.UploadPrompts(ctx, name, f)
		return promptsUploadedMsg{filename: name, prompts: prompts, err: err}
	}
}

func downloadCmd(d SessionDownloader, sess model.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		results, err := d.DownloadSession(ctx, sess)
		return downloadedMsg{sessionID: sess.ID, results: results, err: err}
	}
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max < 2 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
