package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"quill/internal/models"
	"quill/internal/styles"
	"quill/internal/viewsync"
)

// Cycle steps through values from current by delta, wrapping at both ends.
// An unknown current value starts from the first entry.
func Cycle(values []string, current string, delta int) string {
	if len(values) == 0 {
		return current
	}
	idx := -1
	for i, v := range values {
		if v == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return values[0]
	}
	n := len(values)
	return values[((idx+delta)%n+n)%n]
}

// mergeSelection adopts next only for slots that still show the same story
// as when the action started. Slots the user has since changed are kept.
func mergeSelection(cur, next viewsync.Selection) viewsync.Selection {
	pick := func(c, n *models.Item) *models.Item {
		if c != nil && n != nil && c.ID == n.ID {
			return n
		}
		return c
	}
	return viewsync.Selection{
		Current: pick(cur.Current, next.Current),
		Modal:   pick(cur.Modal, next.Modal),
	}
}

// promptChoices lists recent prompts first, then the examples not already
// among them.
func promptChoices(recent, examples []string) []string {
	seen := make(map[string]bool, len(recent))
	out := make([]string, 0, len(recent)+len(examples))
	for _, p := range recent {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range examples {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (m *Model) compact() bool {
	return m.WindowWidth < CompactWidthThresh
}

func (m *Model) leftWidth() int {
	if m.Expanded || m.compact() {
		return m.WindowWidth - 2
	}
	return m.WindowWidth*3/5 - 1
}

func (m *Model) rightWidth() int {
	if m.compact() {
		return m.WindowWidth - 2
	}
	return m.WindowWidth - m.leftWidth() - 3
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}
	inputWidth := m.leftWidth() - 4
	if inputWidth < 20 {
		inputWidth = 20
	}
	lineCount := WrappedLineCount(m.Prompt.Value(), inputWidth-2)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > m.Prompt.MaxHeight {
		lineCount = m.Prompt.MaxHeight
	}
	m.Prompt.SetWidth(inputWidth)
	m.Prompt.SetHeight(lineCount)
	m.Search.Width = m.rightWidth() - 6
}

// layout sizes every panel for the current window.
func (m *Model) layout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}
	m.updateInputLayout()

	detailWidth := m.leftWidth() - 4
	if detailWidth > MaxDetailWidth {
		detailWidth = MaxDetailWidth
	}
	if detailWidth < 20 {
		detailWidth = 20
	}

	// title + bottom bar + toasts + panel borders
	reserved := 7
	if !m.Expanded {
		reserved += m.Prompt.Height() + 2 + len(formRows) + 1
		if m.compact() {
			reserved += m.listHeight() + 4
		}
	}
	height := m.WindowHeight - reserved
	if height < 5 {
		height = 5
	}
	m.Detail.Width = detailWidth
	m.Detail.Height = height

	m.ModalView.Width = ModalWidth - 6
	m.ModalView.Height = m.WindowHeight - 14
	if m.ModalView.Height > 30 {
		m.ModalView.Height = 30
	}
	if m.ModalView.Height < 5 {
		m.ModalView.Height = 5
	}

	m.Renderer.SetWidth(detailWidth - 2)
	if m.Selection.Current != nil && !m.Generating {
		m.Markup = m.render(m.Selection.Current.Content)
	}
	if m.Selection.Modal != nil {
		m.Renderer.SetWidth(m.ModalView.Width - 2)
		m.ModalMarkup = m.render(m.Selection.Modal.Content)
		m.Renderer.SetWidth(detailWidth - 2)
	}
	m.refreshDetail()
	m.refreshModal()
}

// listHeight is the number of terminal lines given to story cards.
func (m *Model) listHeight() int {
	if m.compact() {
		return 9
	}
	h := m.WindowHeight - 8
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) refreshDetail() {
	m.Detail.SetContent(m.detailContent())
}

func (m *Model) refreshModal() {
	if m.Selection.Modal == nil {
		m.ModalView.SetContent("")
		return
	}
	it := *m.Selection.Modal
	body := m.ModalMarkup
	if body == "" {
		body = it.Content
	}
	m.ModalView.SetContent(lipgloss.JoinVertical(lipgloss.Left, StoryMeta(it), "", body))
}

// StoryMeta is the one-line summary shown above a story.
func StoryMeta(it models.Item) string {
	star := styles.MetaStyle.Render("☆")
	if it.Favorite {
		star = styles.FavoriteStyle.Render("★")
	}
	parts := []string{it.Tone, it.Language, fmt.Sprintf("%d words", it.WordCount)}
	if !it.CreatedAt.IsZero() {
		parts = append(parts, RelativeTime(it.CreatedAt.Time))
	}
	return fmt.Sprintf("%s %s %s", star, styles.GenreBadge(it.Genre), styles.MetaStyle.Render(strings.Join(parts, " • ")))
}

// FormatCard renders one list entry: metadata line plus a content preview.
func FormatCard(it models.Item, selected bool, width int) string {
	preview := PromptPreview(it.Content)
	if preview == "" {
		preview = PromptPreview(it.Prompt)
	}
	preview = TruncateRunes(preview, min(CardPreviewRunes, width-4))
	body := lipgloss.JoinVertical(lipgloss.Left, StoryMeta(it), styles.StoryTextStyle.Render(preview))
	style := styles.CardStyle
	if selected {
		style = styles.SelectedCardStyle
	}
	return style.Width(width).Render(body)
}

func PromptPreview(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")
	const maxRunes = 500
	r := []rune(s)
	if len(r) > maxRunes {
		return string(r[:maxRunes])
	}
	return s
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if d < 24*time.Hour {
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hr ago"
		}
		return fmt.Sprintf("%d hrs ago", hrs)
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("Jan 2, 2006")
}

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}
