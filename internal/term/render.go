package term

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// Renderer lays panes out side by side inside rounded borders.
type Renderer struct {
	r      *lipgloss.Renderer
	box    lipgloss.Style
	title  lipgloss.Style
	failed lipgloss.Style
}

// NewRenderer creates a renderer whose color profile is detected from out.
func NewRenderer(out io.Writer) *Renderer {
	r := lipgloss.NewRenderer(out)
	return newRenderer(r)
}

// NewRendererWithProfile creates a renderer with a fixed color profile.
func NewRendererWithProfile(out io.Writer, profile termenv.Profile) *Renderer {
	r := lipgloss.NewRenderer(out)
	r.SetColorProfile(profile)
	return newRenderer(r)
}

func newRenderer(r *lipgloss.Renderer) *Renderer {
	return &Renderer{
		r: r,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		failed: r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// View is what the renderer needs to know about one pane.
type View struct {
	Pane *Pane
	// Status is shown after the title, e.g. "exit 1". Empty hides it.
	Status string
	// Failed marks the status as an error.
	Failed bool
}

// Render draws views into a width x height block. Each pane shows its
// title and the tail of its output.
func (r *Renderer) Render(views []View, width, height int) string {
	if len(views) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	innerH := height - 2
	if innerH < 1 {
		innerH = 1
	}

	boxes := make([]string, 0, len(views))
	remaining := width
	for i, v := range views {
		colW := width / len(views)
		if i == len(views)-1 {
			colW = remaining
		}
		remaining -= colW

		innerW := colW - 2
		if innerW < 1 {
			innerW = 1
		}
		boxes = append(boxes, r.renderBox(v, innerW, innerH))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (r *Renderer) renderBox(v View, w, h int) string {
	header := r.title.Render(ansi.Truncate(v.Pane.Title, w, ""))
	if v.Status != "" {
		style := r.title.UnsetBold().UnsetForeground()
		if v.Failed {
			style = r.failed
		}
		room := w - ansi.StringWidth(v.Pane.Title) - 1
		if room > 0 {
			header += " " + style.Render(ansi.Truncate(v.Status, room, ""))
		}
	}

	lines := []string{header}
	for _, l := range v.Pane.Tail(h - 1) {
		lines = append(lines, ansi.Truncate(l, w, ""))
	}

	return r.box.
		Width(w).
		Height(h).
		MaxHeight(h + 2).
		Render(strings.Join(lines, "\n"))
}
