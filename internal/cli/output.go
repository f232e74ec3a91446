package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vipguy/Bing4/internal/localstore"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/poller"
	"github.com/vipguy/Bing4/internal/storage"
)

const promptWidth = 48

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	return t
}

func renderSessions(w io.Writer, sessions []model.Session) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Status", "Progress", "Styles", "Prompt", "Created"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Progress", Align: text.AlignRight},
		{Name: "Prompt", WidthMax: promptWidth},
	})
	for _, s := range sessions {
		styles := "No styles"
		if len(s.Styles) > 0 {
			styles = strings.Join(s.Styles, ", ")
		}
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			s.ID,
			s.Status.Icon() + " " + string(s.Status),
			fmt.Sprintf("%d/%d", s.CompletedImages, s.TotalImages),
			styles,
			s.Prompt,
			created,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", pluralize(len(sessions), "session")})
	t.Render()
}

func renderStyles(w io.Writer, styles []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Style"})
	for i, s := range styles {
		t.AppendRow(table.Row{i + 1, s})
	}
	t.Render()
}

func renderDownloads(w io.Writer, results []storage.Result) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Image", "Saved to", "Status"})
	for _, r := range results {
		status := "saved"
		switch {
		case r.Err != nil:
			status = pixel.Message(r.Err)
		case r.Skipped:
			status = "already saved"
		}
		t.AppendRow(table.Row{r.ImageID, r.Location, status})
	}
	t.Render()
}

func renderLedger(w io.Writer, records []localstore.Download) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Image", "Saved to", "When"})
	for _, d := range records {
		t.AppendRow(table.Row{d.ImageID, d.Location, d.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", pluralize(len(records), "image")})
	t.Render()
}

// progressPrinter writes one line per poll event. Events arrive from
// poller goroutines.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Listener() poller.Listener {
	return func(ev poller.Event) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if ev.Session != nil {
			fmt.Fprintf(p.w, "%s  %-16s %d/%d completed\n",
				ev.SessionID, ev.Session.Status, ev.Session.CompletedImages, ev.Session.TotalImages)
		}
		switch ev.Reason {
		case poller.ReasonFetchFailed:
			fmt.Fprintf(p.w, "%s  polling failed: %s\n", ev.SessionID, pixel.Message(ev.Err))
		case poller.ReasonExhausted:
			fmt.Fprintf(p.w, "%s  gave up after %d checks\n", ev.SessionID, ev.Fetches)
		case poller.ReasonCancelled:
			fmt.Fprintf(p.w, "%s  stopped\n", ev.SessionID)
		}
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// maskSecret keeps the cookie name and the last four characters
func maskSecret(v string) string {
	name, value, found := strings.Cut(v, "=")
	if !found {
		name, value = "", v
	} else {
		name += "="
	}
	if len(value) <= 4 {
		return name + value
	}
	return name + strings.Repeat("•", 8) + value[len(value)-4:]
}
