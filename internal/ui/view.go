package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"quill/internal/collection"
	"quill/internal/models"
	"quill/internal/session"
	"quill/internal/styles"
)

type formRow struct {
	focus Focus
	label string
}

var formRows = []formRow{
	{FocusGenre, "Genre"},
	{FocusTone, "Tone"},
	{FocusLength, "Length"},
	{FocusLanguage, "Language"},
}

func (m *Model) optionValue(f Focus) string {
	switch f {
	case FocusGenre:
		return m.Form.Genre
	case FocusTone:
		return m.Form.Tone
	case FocusLength:
		return m.Options.LengthByKey(m.Form.Length).Label
	case FocusLanguage:
		return m.Form.Language
	}
	return ""
}

func (m *Model) RenderForm() string {
	promptStyle := styles.PanelStyle
	if m.Focus == FocusPrompt {
		promptStyle = styles.InputBoxStyle
	}
	prompt := promptStyle.Width(m.leftWidth() - 2).Render(m.Prompt.View())

	rows := []string{prompt}
	for _, r := range formRows {
		label := styles.LabelStyle.Render(r.label)
		value := styles.OptionStyle.Render(m.optionValue(r.focus))
		if m.Focus == r.focus {
			label = styles.FocusedLabelStyle.Render(r.label)
			value = styles.FocusedOptionStyle.Render("‹ " + m.optionValue(r.focus) + " ›")
		}
		rows = append(rows, " "+label+" "+value)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func stateLabel(s session.State) string {
	switch s {
	case session.StateRequesting:
		return "Starting the story..."
	case session.StateStreaming:
		return "Writing..."
	case session.StateReconciling:
		return "Saving..."
	default:
		return "Working..."
	}
}

func (m *Model) detailContent() string {
	if m.Generating {
		status := fmt.Sprintf("%s %s", m.Spinner.View(), stateLabel(m.State))
		if m.Streamed == "" {
			return status
		}
		text := styles.StoryTextStyle.Width(m.Detail.Width).Render(m.Streamed)
		return lipgloss.JoinVertical(lipgloss.Left, text, "", styles.MetaStyle.Render(status))
	}

	if m.Selection.Current == nil {
		lines := []string{
			styles.WelcomeSubtitleStyle.Render("Every story begins with a single idea."),
			"",
			styles.MetaStyle.Render("Type a prompt and press Enter. Ctrl+R loads an example."),
		}
		if m.State == session.StateErrored {
			lines = append(lines, "", styles.ErrorStyle.Render("The last story could not be generated."))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	it := *m.Selection.Current
	body := m.Markup
	if body == "" {
		body = styles.StoryTextStyle.Width(m.Detail.Width).Render(it.Content)
	}
	header := styles.StoryLabelStyle.Render(it.Genre + " Story")
	return lipgloss.JoinVertical(lipgloss.Left, header, StoryMeta(it), "", body)
}

func (m *Model) RenderDetail() string {
	return styles.PanelStyle.Width(m.leftWidth() - 2).Render(m.Detail.View())
}

func (m *Model) RenderList() string {
	width := m.rightWidth() - 2
	searchStyle := styles.PanelStyle
	if m.Focus == FocusSearch {
		searchStyle = styles.InputBoxStyle
	}
	search := searchStyle.Width(width).Render(m.Search.View())

	title := "All Stories"
	if m.Stories.Scope == models.ScopeFavorites {
		title = "Favorite Stories"
	}
	title = fmt.Sprintf("%s (%d)", title, m.Stories.Len())
	titleStyle := styles.LabelStyle.Copy().Width(width)
	if m.Focus == FocusList {
		titleStyle = styles.FocusedLabelStyle.Copy().Width(width)
	}

	var body string
	if m.Stories.Len() == 0 {
		body = styles.MetaStyle.Render(collection.EmptyMessage(m.Stories))
	} else {
		// Each card is two lines plus a spacer.
		perPage := m.listHeight() / 3
		if perPage < 1 {
			perPage = 1
		}
		start := 0
		if m.ListIdx >= perPage {
			start = m.ListIdx - perPage + 1
		}
		end := min(start+perPage, m.Stories.Len())
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, FormatCard(m.Stories.Items[i], m.Focus == FocusList && i == m.ListIdx, width-2))
		}
		body = strings.Join(cards, "\n\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left, search, titleStyle.Render(title), body)
}

func (m *Model) RenderStoryModal() string {
	it := *m.Selection.Modal
	title := styles.ModalTitleStyle.Copy().Width(ModalWidth - 6).Render(it.Genre + " Story")
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(ModalWidth - 6).
		PaddingTop(1).
		Render("f: favorite • c: copy • d: download • x: delete • Esc: close")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.ModalView.View(), hint)
}

type countRow struct {
	name  string
	count int
}

func sortedCounts(counts map[string]int) []countRow {
	rows := make([]countRow, 0, len(counts))
	for k, v := range counts {
		rows = append(rows, countRow{k, v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

func (m *Model) RenderStatsModal() string {
	width := ModalWidth - 6
	title := styles.ModalTitleStyle.Copy().Width(width).Render("Story Statistics")
	st := m.Stats

	keyStyle := styles.KeyStyle.Copy().Width(16)
	lines := []string{
		keyStyle.Render("Stories") + fmt.Sprintf("%d", st.TotalStories),
		keyStyle.Render("Words") + fmt.Sprintf("%d", st.TotalWords),
		keyStyle.Render("Average") + fmt.Sprintf("%d words", st.AverageWords),
		keyStyle.Render("Favorites") + fmt.Sprintf("%d", st.Favorites),
	}
	section := func(name string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		lines = append(lines, "", styles.FocusedLabelStyle.Copy().Width(width).Render(name))
		for _, r := range sortedCounts(counts) {
			lines = append(lines, fmt.Sprintf("  %-14s %d", r.name, r.count))
		}
	}
	section("Genres", st.Genres)
	section("Tones", st.Tones)
	section("Languages", st.Languages)

	hint := lipgloss.NewStyle().Foreground(styles.HintColor).Width(width).PaddingTop(1).Render("Esc/Enter: close")
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), hint)
}

func (m *Model) RenderConfirmDelete() string {
	width := ModalWidth - 6
	title := styles.ModalTitleStyle.Copy().Width(width).Render("Delete Story")
	body := styles.ModalItemStyle.Copy().Width(width).Render("Are you sure you want to delete this story?")
	hint := lipgloss.NewStyle().Foreground(styles.HintColor).Width(width).PaddingTop(1).Render("y: delete • n/Esc: cancel")
	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderShortcutsModal() string {
	width := ModalWidth - 6
	title := styles.ModalTitleStyle.Copy().Width(width).Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Generate story"},
		{"Tab", "Next field"},
		{"←/→", "Change option"},
		{"Ctrl+R", "Load a recent or example prompt"},
		{"Ctrl+N", "Reset form"},
		{"Ctrl+F", "Toggle favorites"},
		{"Ctrl+T", "Statistics"},
		{"Ctrl+E", "Expand story"},
		{"Ctrl+B", "Favorite current story"},
		{"Ctrl+Y", "Copy current story"},
		{"Ctrl+D", "Download current story"},
		{"f / x", "Favorite / delete card"},
		{"Ctrl+C", "Quit"},
	}

	keyStyle := styles.KeyStyle.Copy().Width(12)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E0E0"))
	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Copy().Width(width).Render(line))
	}

	hint := lipgloss.NewStyle().Foreground(styles.HintColor).Width(width).PaddingTop(1).Render("Esc/Enter: close")
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...), hint)
}

func (m *Model) RenderToasts() string {
	if len(m.Toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.Toasts))
	for _, t := range m.Toasts {
		if t.Kind == ToastError {
			lines = append(lines, styles.ToastErrorStyle.Render("✕ "+t.Text))
		} else {
			lines = append(lines, styles.ToastSuccessStyle.Render("✓ "+t.Text))
		}
	}
	return lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Right, strings.Join(lines, "\n"))
}

func (m *Model) RenderBottomBar() string {
	scopeBadge := "ALL"
	scopeColor := "#81D4FA"
	if m.Stories.Scope == models.ScopeFavorites {
		scopeBadge = "FAVORITES"
		scopeColor = "#FFCC80"
	}
	scope := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(scopeColor)).
		Padding(0, 1).
		Render(scopeBadge)

	server := ""
	if m.Client != nil {
		server = TruncateRunes(m.Client.BaseURL(), 30)
	}
	serverText := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(server)

	state := lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Render(m.State.String())

	count := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Render(fmt.Sprintf("%d stories", m.Stories.Len()))

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#555555")).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, scope, "  ", serverText, "  ", state)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, count, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, strings.Repeat(" ", availableWidth), rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) overlay(modal string) string {
	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(m.WindowWidth, m.WindowHeight, lipgloss.Center, lipgloss.Center, modal)
}

func (m *Model) View() string {
	switch {
	case m.ConfirmDelete != "":
		return m.overlay(m.RenderConfirmDelete())
	case m.StatsOpen:
		return m.overlay(m.RenderStatsModal())
	case m.ShortcutsOpen:
		return m.overlay(m.RenderShortcutsModal())
	case m.Selection.Modal != nil:
		return m.overlay(m.RenderStoryModal())
	}

	title := styles.TitleStyle.Render("QUILL")
	var main string
	switch {
	case m.Expanded:
		main = m.RenderDetail()
	case m.compact():
		main = lipgloss.JoinVertical(lipgloss.Left, m.RenderForm(), m.RenderDetail(), m.RenderList())
	default:
		left := lipgloss.JoinVertical(lipgloss.Left, m.RenderForm(), m.RenderDetail())
		main = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", m.RenderList())
	}

	parts := []string{title, main}
	if toasts := m.RenderToasts(); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.RenderBottomBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
