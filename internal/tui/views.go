package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vipguy/Bing4/internal/generate"
	"github.com/vipguy/Bing4/internal/model"
)

const (
	headerHeight   = 2
	statusHeight   = 1
	debugHeight    = 8
	previewPrompts = 10
)

// View renders the model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.alert != "" {
		return m.alertView()
	}
	if m.showHelp {
		return m.helpView()
	}

	var body string
	switch m.view {
	case ViewGenerate:
		body = m.generateView()
	case ViewBatch:
		body = m.batchView()
	case ViewGallery:
		body = m.galleryView()
	case ViewSettings:
		body = m.settingsView()
	}
	body = lipgloss.NewStyle().
		Width(m.width).
		Height(m.bodyHeight()).
		MaxHeight(m.bodyHeight()).
		Render(body)

	parts := []string{m.renderHeader(), body}
	if m.debug.IsEnabled() {
		parts = append(parts, m.debug.Render(m.width-2, debugHeight))
	}
	parts = append(parts, m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) bodyHeight() int {
	h := m.height - headerHeight - statusHeight
	if m.debug.IsEnabled() {
		h -= debugHeight
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("PIXEL") + DimStyle.Render(" image generator")

	var tabs []string
	for v := ViewGenerate; v < viewCount; v++ {
		label := fmt.Sprintf("%d %s", int(v)+1, v.Title())
		if v == m.view {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}

	left := title + "  " + strings.Join(tabs, "")
	right := "Cookie: " + m.cookieBadge()
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + left + strings.Repeat(" ", gap) + right + "\n"
}

func (m Model) cookieBadge() string {
	switch m.cookieStatus {
	case cookieValid:
		return SuccessStyle.Render("Valid")
	case cookieInvalid:
		return ErrorStyle.Render("Invalid")
	default:
		return WarningStyle.Render("Testing...")
	}
}

// renderStatusBar renders the bottom status bar
func (m Model) renderStatusBar() string {
	var status string
	if n := m.activePollers(); n > 0 {
		status = StatusRunningStyle.Render(spinnerFrames[m.spinnerFrame] + " Polling " + pluralize(n, "session"))
	} else {
		status = StatusIdleStyle.Render("○ Ready")
	}

	mutedStyle := lipgloss.NewStyle().Foreground(ColorFgMuted)
	keyStyle := lipgloss.NewStyle().Foreground(ColorFgPrimary)
	hint := func(k, desc string) string {
		return mutedStyle.Render(" │ ") + keyStyle.Render(k) + mutedStyle.Render(" "+desc)
	}

	var hints string
	switch {
	case m.focus != focusNone:
		hints = hint("Enter", "confirm") + hint("Esc", "unfocus") + hint("Ctrl+C", "quit")
	case m.view == ViewGenerate:
		hints = hint("/", "prompt") + hint("space", "style") + hint("-/+", "images") + hint("Enter", "generate") + hint("?", "help")
	case m.view == ViewBatch:
		hints = hint("/", "file") + hint("space", "style") + hint("g", "generate batch") + hint("?", "help")
	case m.view == ViewGallery:
		hints = hint("r", "refresh") + hint("d", "download") + hint("c", "stop polling") + hint("?", "help")
	default:
		hints = hint("Enter", "edit") + hint("t", "test") + hint("-/+", "images") + hint("?", "help")
	}

	flash := ""
	if m.flash != "" {
		flash = mutedStyle.Render(" │ ") + WarningStyle.Render(m.flash)
	}
	return StatusBarStyle.Render(status + flash + hints)
}

func (m Model) activePollers() int {
	if m.pollers == nil {
		return 0
	}
	return m.pollers.Active()
}

func (m Model) spinner() string {
	return spinnerFrames[m.spinnerFrame]
}

// columns splits the body into a form column and a style column
func (m Model) columns(left, right string) string {
	leftWidth := m.width * 3 / 5
	if leftWidth < 30 {
		leftWidth = 30
	}
	l := lipgloss.NewStyle().Width(leftWidth).PaddingLeft(1).Render(left)
	r := lipgloss.NewStyle().PaddingLeft(2).Render(right)
	return lipgloss.JoinHorizontal(lipgloss.Top, l, r)
}

func (m Model) inputBox(in string, focused bool, width int) string {
	style := InputStyle
	if focused {
		style = FocusedInputStyle
	}
	return style.Width(width).Render(in)
}

func (m Model) generateView() string {
	width := m.width*3/5 - 6
	if width < 20 {
		width = 20
	}
	m.promptInput.Width = width - 4

	var b strings.Builder
	b.WriteString(SectionTitleStyle.Render("Generate Images") + "\n\n")
	b.WriteString(LabelStyle.Render("Prompt") + "\n")
	b.WriteString(m.inputBox(m.promptInput.View(), m.focus == focusPrompt, width) + "\n\n")
	b.WriteString(m.imagesPerStyleControl(m.imagesPerStyle) + "\n\n")

	total := model.TotalImages(m.selection.Len(), m.imagesPerStyle)
	b.WriteString(SummaryStyle.Render(fmt.Sprintf("Will generate %s", pluralize(total, "image"))) + "\n\n")

	if m.submitting {
		b.WriteString(WarningStyle.Render(m.spinner() + " Generating..."))
	} else {
		b.WriteString(HelpKeyStyle.Render("enter") + DimStyle.Render(" Generate Images"))
	}
	return m.columns(b.String(), m.styleList())
}

func (m Model) batchView() string {
	var b strings.Builder
	b.WriteString(SectionTitleStyle.Render("Batch Generation") + "\n\n")
	b.WriteString(LabelStyle.Render("Prompt file (.txt or .csv, one prompt per line)") + "\n")
	width := m.width*3/5 - 6
	if width < 20 {
		width = 20
	}
	m.fileInput.Width = width - 4
	b.WriteString(m.inputBox(m.fileInput.View(), m.focus == focusFile, width) + "\n")

	switch {
	case m.uploading:
		b.WriteString(WarningStyle.Render(m.spinner()+" Uploading...") + "\n")
	case m.batchFile != "":
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("Uploaded: %s (%d prompts)", m.batchFile, len(m.batchPrompts))) + "\n")
	default:
		b.WriteString(DimStyle.Render("No file uploaded") + "\n")
	}
	b.WriteString("\n")

	if len(m.batchPrompts) > 0 {
		b.WriteString(LabelStyle.Render(fmt.Sprintf("Prompts (%d)", len(m.batchPrompts))) + "\n")
		for _, line := range batchPreview(m.batchPrompts) {
			b.WriteString("  " + truncate(line, width) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.imagesPerStyleControl(m.imagesPerStyle) + "\n\n")

	sum := generate.Summary{
		Prompts:        len(m.batchPrompts),
		Styles:         m.selection.Len(),
		ImagesPerStyle: m.imagesPerStyle,
	}
	b.WriteString(LabelStyle.Render("Batch Summary") + "\n")
	b.WriteString(SummaryStyle.Render(strings.Join(sum.Lines(), "\n")) + "\n\n")

	if m.submitting {
		b.WriteString(WarningStyle.Render(m.spinner() + " Generating batch..."))
	} else {
		b.WriteString(HelpKeyStyle.Render("g") + DimStyle.Render(fmt.Sprintf(" Generate Batch (%d prompts)", len(m.batchPrompts))))
	}
	return m.columns(b.String(), m.styleList())
}

// batchPreview lists the first prompts and a count of the rest
func batchPreview(prompts []string) []string {
	var lines []string
	for i, p := range prompts {
		if i == previewPrompts {
			lines = append(lines, fmt.Sprintf("... and %d more prompts", len(prompts)-previewPrompts))
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, p))
	}
	return lines
}

func (m Model) imagesPerStyleControl(n int) string {
	return LabelStyle.Render("Images per style: ") +
		DimStyle.Render("‹ ") + HelpKeyStyle.Render(fmt.Sprintf("%d", n)) + DimStyle.Render(" ›") +
		DimStyle.Render(fmt.Sprintf("  (%d-%d)", model.MinImagesPerStyle, model.MaxImagesPerStyle))
}

// styleList renders a window of the style catalogue around the cursor
func (m Model) styleList() string {
	var b strings.Builder
	b.WriteString(SectionTitleStyle.Render(fmt.Sprintf("Styles (%d selected)", m.selection.Len())) + "\n")
	b.WriteString(DimStyle.Render("space toggle · a all · x clear") + "\n\n")

	if len(m.styles) == 0 {
		b.WriteString(DimStyle.Render("Loading styles..."))
		return b.String()
	}

	window := m.bodyHeight() - 4
	if window < 3 {
		window = 3
	}
	start := 0
	if m.styleCursor >= window {
		start = m.styleCursor - window + 1
	}
	end := start + window
	if end > len(m.styles) {
		end = len(m.styles)
	}

	for i := start; i < end; i++ {
		style := m.styles[i]
		box := "[ ]"
		if m.selection.Has(style) {
			box = CheckedStyle.Render("[✓]")
		}
		line := box + " " + style
		if i == m.styleCursor {
			line = CursorStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) galleryView() string {
	title := SectionTitleStyle.Render(fmt.Sprintf("Generated Images (%s)", pluralize(len(m.sessions), "session")))
	if len(m.sessions) == 0 {
		return " " + title + "\n\n " + DimStyle.Render("No generation sessions yet. Create some images to see them here!")
	}
	return " " + title + "\n\n" + lipgloss.NewStyle().PaddingLeft(1).Render(m.gallery.View())
}

// renderSessions draws every session and returns the line span of each
func (m Model) renderSessions(width int) (string, []int, []int) {
	var lines []string
	starts := make([]int, len(m.sessions))
	ends := make([]int, len(m.sessions))

	for i, sess := range m.sessions {
		starts[i] = len(lines)

		marker := "  "
		if i == m.galleryCursor {
			marker = CursorStyle.Render("▸") + " "
		}
		st := statusStyle(sess.Status)
		badge := st.Render("[" + string(sess.Status) + "]")
		head := marker + st.Render(sess.Status.Icon()) + " " + truncate(sess.Prompt, width-lipgloss.Width(badge)-6)
		pad := width - lipgloss.Width(head) - lipgloss.Width(badge)
		if pad < 1 {
			pad = 1
		}
		lines = append(lines, head+strings.Repeat(" ", pad)+badge)

		styles := "No styles"
		if len(sess.Styles) > 0 {
			styles = strings.Join(sess.Styles, ", ")
		}
		lines = append(lines, "    "+LabelStyle.Render("Styles: ")+truncate(styles, width-12))

		progress := fmt.Sprintf("%d/%d completed", sess.CompletedImages, sess.TotalImages)
		if sess.FailedImages > 0 {
			progress += fmt.Sprintf(" · %d failed", sess.FailedImages)
		}
		progress += " · " + shortID(sess.ID)
		if m.pollers != nil && m.pollers.IsActive(sess.ID) {
			progress += " · " + m.spinner() + " polling"
		}
		if m.downloading[sess.ID] {
			progress += " · downloading"
		}
		lines = append(lines, "    "+DimStyle.Render(progress))

		if len(sess.Images) == 0 {
			if sess.Status == model.StatusProcessing {
				lines = append(lines, "    "+WarningStyle.Render(m.spinner()+" Generating images..."))
			}
		} else {
			var row []string
			rowWidth := 4
			for _, img := range sess.Images {
				cell := statusStyle(img.Status).Render(img.Status.Icon()) + " " + img.StyleLabel()
				w := lipgloss.Width(cell) + 2
				if rowWidth+w > width && len(row) > 0 {
					lines = append(lines, "    "+strings.Join(row, "  "))
					row = nil
					rowWidth = 4
				}
				row = append(row, cell)
				rowWidth += w
			}
			if len(row) > 0 {
				lines = append(lines, "    "+strings.Join(row, "  "))
			}
		}

		ends[i] = len(lines) - 1
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n"), starts, ends
}

func (m *Model) resizeGallery() {
	m.gallery.Width = m.width - 2
	m.gallery.Height = m.bodyHeight() - 2
	if m.gallery.Height < 1 {
		m.gallery.Height = 1
	}
	m.syncGallery()
}

// syncGallery re-renders the gallery and keeps the selected session visible
func (m *Model) syncGallery() {
	if m.gallery.Width <= 0 {
		return
	}
	content, starts, ends := m.renderSessions(m.gallery.Width)
	m.gallery.SetContent(content)
	if m.galleryCursor >= len(starts) {
		return
	}
	top, bottom := starts[m.galleryCursor], ends[m.galleryCursor]
	switch {
	case top < m.gallery.YOffset:
		m.gallery.SetYOffset(top)
	case bottom >= m.gallery.YOffset+m.gallery.Height:
		m.gallery.SetYOffset(bottom - m.gallery.Height + 1)
	}
}

func (m Model) settingsView() string {
	width := m.width*3/5 - 6
	if width < 20 {
		width = 20
	}
	m.cookieInput.Width = width - 4
	m.storageInput.Width = width - 4

	label := func(row int, text string) string {
		if row == m.settingsCursor && m.focus == focusNone {
			return CursorStyle.Render("▸ " + text)
		}
		return LabelStyle.Render("  " + text)
	}

	var b strings.Builder
	b.WriteString(SectionTitleStyle.Render("Settings") + "\n\n")

	b.WriteString(label(settingCookie, "Bing Authentication Cookie") + "\n")
	b.WriteString(m.inputBox(m.cookieInput.View(), m.focus == focusCookie, width) + "\n")
	b.WriteString(DimStyle.Render("Get your cookie from Bing Image Creator while logged in. Look for the '_U' cookie value.") + "\n")
	switch m.cookieStatus {
	case cookieValid:
		b.WriteString(SuccessStyle.Render("✓ Cookie is valid") + "\n")
	case cookieInvalid:
		b.WriteString(ErrorStyle.Render("✗ Cookie is invalid or expired") + "\n")
	default:
		b.WriteString(WarningStyle.Render(m.spinner()+" Testing...") + "\n")
	}
	b.WriteString(HelpKeyStyle.Render("t") + DimStyle.Render(" Test") + "\n\n")

	b.WriteString(label(settingStorage, "Storage Path") + "\n")
	b.WriteString(m.inputBox(m.storageInput.View(), m.focus == focusStorage, width) + "\n")
	b.WriteString(DimStyle.Render("Directory where downloaded images are saved") + "\n\n")

	b.WriteString(label(settingImagesPerStyle, "Default Images Per Style") + "\n")
	b.WriteString("  " + m.imagesPerStyleControl(m.settings.ImagesPerStyle) + "\n")

	steps := []string{
		"Go to Bing Image Creator (https://www.bing.com/images/create)",
		"Log in with your Microsoft account",
		"Open browser developer tools (F12)",
		"Go to Application/Storage → Cookies → bing.com",
		"Find the '_U' cookie and copy its value",
		"Paste it in the field above (include '_U=' prefix)",
	}
	var h strings.Builder
	h.WriteString(HelpTitleStyle.Render("How to get your Bing Cookie:") + "\n")
	for i, s := range steps {
		h.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
	}
	return m.columns(b.String(), PanelStyle.Render(strings.TrimRight(h.String(), "\n")))
}

// helpView renders the help overlay
func (m Model) helpView() string {
	title := HelpTitleStyle.Render("Keyboard Shortcuts")

	var rows []string
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			rows = append(rows, HelpKeyStyle.Render(fmt.Sprintf("%-10s", h.Key))+HelpDescStyle.Render(h.Desc))
		}
		rows = append(rows, "")
	}

	content := title + "\n\n" + strings.Join(rows, "\n") + HelpDescStyle.Render("Press ? or Esc to close")
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		HelpStyle.Render(content),
	)
}

// alertView renders the modal alert
func (m Model) alertView() string {
	width := m.width / 2
	if width < 30 {
		width = 30
	}
	content := ErrorStyle.Bold(true).Render("Error") + "\n\n" +
		lipgloss.NewStyle().Width(width).Foreground(ColorFgPrimary).Render(m.alert) + "\n\n" +
		DimStyle.Render("Press Enter or Esc to dismiss")
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		AlertStyle.Render(content),
	)
}
