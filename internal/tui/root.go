package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vipguy/Bing4/internal/generate"
	"github.com/vipguy/Bing4/internal/localstore"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/poller"
	"github.com/vipguy/Bing4/internal/session"
)

// ViewMode represents the current view
type ViewMode int

const (
	ViewGenerate ViewMode = iota
	ViewBatch
	ViewGallery
	ViewSettings
	viewCount
)

func (v ViewMode) Title() string {
	switch v {
	case ViewGenerate:
		return "Generate"
	case ViewBatch:
		return "Batch"
	case ViewGallery:
		return "Gallery"
	case ViewSettings:
		return "Settings"
	default:
		return ""
	}
}

// focusField is the text input receiving keystrokes, if any
type focusField int

const (
	focusNone focusField = iota
	focusPrompt
	focusFile
	focusCookie
	focusStorage
)

// settings rows
const (
	settingCookie = iota
	settingStorage
	settingImagesPerStyle
	settingCount
)

type cookieStatus int

const (
	cookieTesting cookieStatus = iota
	cookieValid
	cookieInvalid
)

// Spinner frames for in-flight work
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Options wires the model to the rest of the application
type Options struct {
	Backend   Backend
	Submitter Submitter
	Store     *session.Store
	Pollers   PollControl
	Prefs     Preferences
	// NewDownloader builds a downloader for the configured storage path
	NewDownloader func(storagePath string) SessionDownloader
	Events        <-chan poller.Event
	Debug         bool
	Logger        *slog.Logger
}

// Model is the root model for the application
type Model struct {
	width  int
	height int
	ready  bool

	view     ViewMode
	showHelp bool
	alert    string
	flash    string
	keys     KeyMap

	backend       Backend
	submitter     Submitter
	store         *session.Store
	pollers       PollControl
	prefs         Preferences
	newDownloader func(string) SessionDownloader
	events        <-chan poller.Event
	logger        *slog.Logger

	// Compose state shared by Generate and Batch
	styles         []string
	styleCursor    int
	selection      *generate.Selection
	imagesPerStyle int
	submitting     bool

	focus        focusField
	promptInput  textinput.Model
	fileInput    textinput.Model
	cookieInput  textinput.Model
	storageInput textinput.Model

	uploading    bool
	batchFile    string
	batchPrompts []string

	settings       localstore.Settings
	settingsCursor int
	cookieStatus   cookieStatus

	sessions      []model.Session
	galleryCursor int
	gallery       viewport.Model
	downloading   map[string]bool

	spinning     bool
	spinnerFrame int
	debug        DebugPanel
}

// NewRootModel creates the root model. Settings are read synchronously so the
// first frame already shows the stored token and defaults.
func NewRootModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prompt := textinput.New()
	prompt.Placeholder = "Describe the image you want to create..."
	prompt.Prompt = "❯ "
	prompt.PromptStyle = InputPromptStyle
	prompt.CharLimit = 1000

	file := textinput.New()
	file.Placeholder = "path/to/prompts.txt"
	file.Prompt = "❯ "
	file.PromptStyle = InputPromptStyle

	cookie := textinput.New()
	cookie.Placeholder = "_U=your_cookie_value"
	cookie.Prompt = "❯ "
	cookie.PromptStyle = InputPromptStyle
	cookie.EchoMode = textinput.EchoPassword
	cookie.EchoCharacter = '•'

	storagePath := textinput.New()
	storagePath.Placeholder = localstore.DefaultStoragePath
	storagePath.Prompt = "❯ "
	storagePath.PromptStyle = InputPromptStyle

	m := Model{
		view:          ViewGenerate,
		keys:          DefaultKeyMap(),
		backend:       opts.Backend,
		submitter:     opts.Submitter,
		store:         opts.Store,
		pollers:       opts.Pollers,
		prefs:         opts.Prefs,
		newDownloader: opts.NewDownloader,
		events:        opts.Events,
		logger:        logger.With("component", "tui"),
		selection:     generate.NewSelection(),
		promptInput:   prompt,
		fileInput:     file,
		cookieInput:   cookie,
		storageInput:  storagePath,
		cookieStatus:  cookieTesting,
		gallery:       viewport.New(0, 0),
		downloading:   make(map[string]bool),
		debug:         NewDebugPanel(opts.Debug),
		settings: localstore.Settings{
			AuthCookie:     localstore.DefaultAuthCookie,
			StoragePath:    localstore.DefaultStoragePath,
			ImagesPerStyle: model.DefaultImagesPerStyle,
		},
	}

	if m.prefs != nil {
		s, err := m.prefs.LoadSettings()
		if err != nil {
			m.alert = "Failed to load settings: " + err.Error()
		} else {
			m.settings = s
		}
	}
	m.imagesPerStyle = m.settings.ImagesPerStyle
	m.cookieInput.SetValue(m.settings.AuthCookie)
	m.storageInput.SetValue(m.settings.StoragePath)
	m.refreshSessions()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		loadStylesCmd(m.backend),
		testCookieCmd(m.backend, m.settings.AuthCookie),
		reloadCmd(m.submitter),
		waitForPollEvent(m.events),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeGallery()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinnerTickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		m.syncGallery()
		return m, spinnerTickCmd()

	case stylesLoadedMsg:
		if msg.err != nil {
			m.logger.Error("load styles", "error", msg.err)
			m.alert = "Failed to load styles: " + pixel.Message(msg.err)
			return m, nil
		}
		m.styles = msg.styles
		if m.styleCursor >= len(m.styles) {
			m.styleCursor = 0
		}
		return m, nil

	case cookieTestedMsg:
		// A result for a token that has since been edited is stale
		if msg.cookie != m.settings.AuthCookie {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warn("test cookie", "error", msg.err)
		}
		if msg.err == nil && msg.valid {
			m.cookieStatus = cookieValid
		} else {
			m.cookieStatus = cookieInvalid
		}
		return m, nil

	case submittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.alert = failureText("Generation failed: ", msg.err)
			m.debug.AddEvent("submit", "error: "+pixel.Message(msg.err))
			return m, nil
		}
		m.debug.AddEvent("submit", fmt.Sprintf("%s total=%d", msg.session.ID, msg.session.TotalImages))
		m.flash = "Started session " + shortID(msg.session.ID)
		m.view = ViewGallery
		m.galleryCursor = 0
		m.refreshSessions()
		cmd := m.ensureSpinner()
		return m, cmd

	case batchSubmittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.alert = failureText("Batch generation failed: ", msg.err)
			m.debug.AddEvent("batch", "error: "+pixel.Message(msg.err))
			return m, nil
		}
		m.debug.AddEvent("batch", fmt.Sprintf("%d sessions", len(msg.sessions)))
		m.flash = "Started " + pluralize(len(msg.sessions), "session")
		m.view = ViewGallery
		m.galleryCursor = 0
		m.refreshSessions()
		cmd := m.ensureSpinner()
		return m, cmd

	case promptsUploadedMsg:
		m.uploading = false
		if msg.err != nil {
			m.alert = "Failed to parse file: " + pixel.Message(msg.err)
			return m, nil
		}
		m.batchFile = msg.filename
		m.batchPrompts = msg.prompts
		m.debug.AddEvent("upload", fmt.Sprintf("%s prompts=%d", msg.filename, len(msg.prompts)))
		return m, nil

	case sessionsReloadedMsg:
		if msg.err != nil {
			m.logger.Error("load sessions", "error", msg.err)
			m.alert = "Failed to load sessions: " + pixel.Message(msg.err)
			return m, nil
		}
		m.refreshSessions()
		return m, nil

	case downloadedMsg:
		delete(m.downloading, msg.sessionID)
		saved, skipped := 0, 0
		var where string
		for _, r := range msg.results {
			switch {
			case r.Err != nil:
				continue
			case r.Skipped:
				skipped++
			default:
				saved++
			}
			where = r.Location
		}
		m.debug.AddEvent("download", fmt.Sprintf("%s saved=%d skipped=%d", msg.sessionID, saved, skipped))
		if msg.err != nil {
			m.alert = "Download failed: " + pixel.Message(msg.err)
			return m, nil
		}
		if saved == 0 && skipped > 0 {
			m.flash = "Already saved " + pluralize(skipped, "image")
		} else {
			m.flash = "Saved " + pluralize(saved, "image")
		}
		if where != "" {
			m.flash += " to " + filepath.Dir(where)
		}
		if saved > 0 && skipped > 0 {
			m.flash += fmt.Sprintf(" (%d already saved)", skipped)
		}
		return m, nil

	case pollEventsMsg:
		for _, ev := range msg.events {
			m.handlePollEvent(ev)
		}
		m.refreshSessions()
		return m, waitForPollEvent(m.events)

	case pollingStoppedMsg:
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

func (m *Model) handlePollEvent(ev poller.Event) {
	detail := fmt.Sprintf("%s %s fetch=%d", shortID(ev.SessionID), ev.Reason, ev.Fetches)
	if ev.Session != nil {
		detail += fmt.Sprintf(" %s %d/%d", ev.Session.Status, ev.Session.CompletedImages, ev.Session.TotalImages)
	}
	m.debug.AddEvent("poll", detail)

	switch ev.Reason {
	case poller.ReasonFetchFailed:
		m.flash = fmt.Sprintf("Polling stopped for %s: %s", shortID(ev.SessionID), pixel.Message(ev.Err))
	case poller.ReasonExhausted:
		m.flash = fmt.Sprintf("Gave up polling %s after %d checks", shortID(ev.SessionID), ev.Fetches)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		return m, tea.Quit
	}

	// The alert is modal
	if m.alert != "" {
		if key.Matches(msg, m.keys.Enter, m.keys.Escape) {
			m.alert = ""
		}
		return m, nil
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	if m.focus != focusNone {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Generate):
		return m.switchView(ViewGenerate), nil
	case key.Matches(msg, m.keys.Batch):
		return m.switchView(ViewBatch), nil
	case key.Matches(msg, m.keys.Gallery):
		return m.switchView(ViewGallery), nil
	case key.Matches(msg, m.keys.Settings):
		return m.switchView(ViewSettings), nil
	case key.Matches(msg, m.keys.NextView):
		return m.switchView((m.view + 1) % viewCount), nil
	case key.Matches(msg, m.keys.PrevView):
		return m.switchView((m.view + viewCount - 1) % viewCount), nil
	case key.Matches(msg, m.keys.TestCookie):
		return m.testCookie()
	case key.Matches(msg, m.keys.Escape):
		m.flash = ""
		return m, nil
	}

	switch m.view {
	case ViewGenerate, ViewBatch:
		return m.handleComposeKey(msg)
	case ViewGallery:
		return m.handleGalleryKey(msg)
	case ViewSettings:
		return m.handleSettingsKey(msg)
	}
	return m, nil
}

func (m Model) switchView(v ViewMode) Model {
	m.view = v
	if v == ViewGallery {
		m.refreshSessions()
	}
	return m
}

// handleComposeKey handles the style and count controls shared by Generate
// and Batch, plus each view's submit action
func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.styleCursor > 0 {
			m.styleCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.styleCursor < len(m.styles)-1 {
			m.styleCursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.styleCursor < len(m.styles) {
			m.selection.Toggle(m.styles[m.styleCursor])
		}
	case key.Matches(msg, m.keys.SelectAll):
		m.selection.SelectAll(m.styles)
	case key.Matches(msg, m.keys.Clear):
		m.selection.Clear()
	case key.Matches(msg, m.keys.More):
		if m.imagesPerStyle < model.MaxImagesPerStyle {
			m.imagesPerStyle++
		}
	case key.Matches(msg, m.keys.Fewer):
		if m.imagesPerStyle > model.MinImagesPerStyle {
			m.imagesPerStyle--
		}
	case key.Matches(msg, m.keys.Focus):
		if m.view == ViewGenerate {
			cmd := m.focusOn(focusPrompt)
			return m, cmd
		}
		cmd := m.focusOn(focusFile)
		return m, cmd
	case key.Matches(msg, m.keys.Enter):
		if m.view == ViewGenerate {
			return m.submit()
		}
		return m.submitBatch()
	case key.Matches(msg, m.keys.RunBatch):
		if m.view == ViewBatch {
			return m.submitBatch()
		}
	}
	return m, nil
}

func (m Model) handleGalleryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.galleryCursor > 0 {
			m.galleryCursor--
			m.syncGallery()
		}
	case key.Matches(msg, m.keys.Down):
		if m.galleryCursor < len(m.sessions)-1 {
			m.galleryCursor++
			m.syncGallery()
		}
	case key.Matches(msg, m.keys.Refresh):
		m.flash = "Refreshing..."
		return m, reloadCmd(m.submitter)
	case key.Matches(msg, m.keys.Download):
		return m.downloadSelected()
	case key.Matches(msg, m.keys.Cancel):
		sess, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.pollers != nil && m.pollers.Stop(sess.ID) {
			m.flash = "Stopped polling " + shortID(sess.ID)
			m.debug.AddEvent("cancel", sess.ID)
		} else {
			m.flash = "Not polling " + shortID(sess.ID)
		}
	}
	return m, nil
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.settingsCursor < settingCount-1 {
			m.settingsCursor++
		}
	case key.Matches(msg, m.keys.Enter, m.keys.Focus):
		switch m.settingsCursor {
		case settingCookie:
			cmd := m.focusOn(focusCookie)
			return m, cmd
		case settingStorage:
			cmd := m.focusOn(focusStorage)
			return m, cmd
		}
	case key.Matches(msg, m.keys.More, m.keys.Fewer):
		if m.settingsCursor != settingImagesPerStyle {
			return m, nil
		}
		n := m.settings.ImagesPerStyle
		if key.Matches(msg, m.keys.More) {
			n++
		} else {
			n--
		}
		if !model.ValidImagesPerStyle(n) {
			return m, nil
		}
		m.settings.ImagesPerStyle = n
		m.savePref(m.prefsOrNil(func(p Preferences) error { return p.SetImagesPerStyle(n) }))
	}
	return m, nil
}

// handleInputKey routes keys to the focused text input
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.blur()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		field := m.focus
		m.blur()
		switch field {
		case focusPrompt:
			return m.submit()
		case focusFile:
			path := strings.TrimSpace(m.fileInput.Value())
			if path == "" || m.uploading {
				return m, nil
			}
			m.uploading = true
			cmd := tea.Batch(uploadPromptsCmd(m.backend, path), m.ensureSpinner())
			return m, cmd
		}
		return m, nil
	}
	return m.updateFocusedInput(msg)
}

// updateFocusedInput forwards msg to the focused input. Settings inputs are
// persisted on every change.
func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusPrompt:
		m.promptInput, cmd = m.promptInput.Update(msg)
	case focusFile:
		m.fileInput, cmd = m.fileInput.Update(msg)
	case focusCookie:
		m.cookieInput, cmd = m.cookieInput.Update(msg)
		if v := m.cookieInput.Value(); v != m.settings.AuthCookie {
			m.settings.AuthCookie = v
			m.savePref(m.prefsOrNil(func(p Preferences) error { return p.SetAuthCookie(v) }))
		}
	case focusStorage:
		m.storageInput, cmd = m.storageInput.Update(msg)
		if v := m.storageInput.Value(); v != m.settings.StoragePath {
			m.settings.StoragePath = v
			m.savePref(m.prefsOrNil(func(p Preferences) error { return p.SetStoragePath(v) }))
		}
	}
	return m, cmd
}

func (m Model) prefsOrNil(set func(Preferences) error) error {
	if m.prefs == nil {
		return nil
	}
	return set(m.prefs)
}

func (m *Model) savePref(err error) {
	if err != nil {
		m.logger.Error("save settings", "error", err)
		m.alert = "Failed to save settings: " + err.Error()
	}
}

func (m *Model) focusOn(f focusField) tea.Cmd {
	m.blur()
	m.focus = f
	switch f {
	case focusPrompt:
		return m.promptInput.Focus()
	case focusFile:
		return m.fileInput.Focus()
	case focusCookie:
		return m.cookieInput.Focus()
	case focusStorage:
		return m.storageInput.Focus()
	}
	return nil
}

func (m *Model) blur() {
	m.focus = focusNone
	m.promptInput.Blur()
	m.fileInput.Blur()
	m.cookieInput.Blur()
	m.storageInput.Blur()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.submitting = true
	req := generate.Request{
		Prompt:         m.promptInput.Value(),
		Styles:         m.selection.Styles(),
		ImagesPerStyle: m.imagesPerStyle,
		AuthCookie:     m.settings.AuthCookie,
	}
	cmd := tea.Batch(submitCmd(m.submitter, req), m.ensureSpinner())
	return m, cmd
}

func (m Model) submitBatch() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.submitting = true
	req := generate.BatchRequest{
		Prompts:        append([]string(nil), m.batchPrompts...),
		Styles:         m.selection.Styles(),
		ImagesPerStyle: m.imagesPerStyle,
		AuthCookie:     m.settings.AuthCookie,
	}
	cmd := tea.Batch(submitBatchCmd(m.submitter, req), m.ensureSpinner())
	return m, cmd
}

func (m Model) testCookie() (tea.Model, tea.Cmd) {
	m.cookieStatus = cookieTesting
	return m, testCookieCmd(m.backend, m.settings.AuthCookie)
}

func (m Model) downloadSelected() (tea.Model, tea.Cmd) {
	sess, ok := m.selected()
	if !ok || m.downloading[sess.ID] {
		return m, nil
	}
	n := 0
	for _, img := range sess.Images {
		if img.Downloadable() {
			n++
		}
	}
	if n == 0 {
		m.flash = "No completed images to download"
		return m, nil
	}
	if m.newDownloader == nil {
		return m, nil
	}
	m.downloading[sess.ID] = true
	m.flash = "Downloading " + pluralize(n, "image") + "..."
	cmd := tea.Batch(downloadCmd(m.newDownloader(m.settings.StoragePath), sess), m.ensureSpinner())
	return m, cmd
}

func (m Model) selected() (model.Session, bool) {
	if m.galleryCursor < 0 || m.galleryCursor >= len(m.sessions) {
		return model.Session{}, false
	}
	return m.sessions[m.galleryCursor], true
}

// refreshSessions re-reads the store, which is the source of truth
func (m *Model) refreshSessions() {
	if m.store == nil {
		return
	}
	m.sessions = m.store.List()
	if m.galleryCursor >= len(m.sessions) {
		m.galleryCursor = len(m.sessions) - 1
	}
	if m.galleryCursor < 0 {
		m.galleryCursor = 0
	}
	m.syncGallery()
}

func (m *Model) busy() bool {
	if m.submitting || m.uploading || len(m.downloading) > 0 {
		return true
	}
	return m.pollers != nil && m.pollers.Active() > 0
}

// ensureSpinner starts the spinner tick unless one is already running
func (m *Model) ensureSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return spinnerTickCmd()
}

// failureText keeps validation messages verbatim and prefixes everything else
func failureText(prefix string, err error) string {
	var verr *generate.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return prefix + pixel.Message(err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
