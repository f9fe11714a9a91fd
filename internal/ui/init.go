package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quill/internal/collection"
	"quill/internal/db"
	"quill/internal/logging"
	"quill/internal/models"
	"quill/internal/session"
	"quill/internal/styles"
	"quill/internal/viewsync"
)

func InitialModel(deps Deps) Model {
	ti := textarea.New()
	ti.Placeholder = "Describe your story idea..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 4
	ti.SetHeight(2)
	ti.SetWidth(60)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	search := textinput.New()
	search.Placeholder = "Search stories..."
	search.Prompt = "/ "
	search.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))

	style := deps.GlamourStyle
	if style == "" {
		style = "notty"
	}
	renderer := NewMarkdownFormatter(style, 76)

	out := &outbox{}
	engine := session.NewEngine(deps.Client,
		session.WithFormatter(renderer),
		session.WithIdleTimeout(deps.StreamIdleTimeout),
		session.WithStateHook(func(s session.State) { out.Send(StateMsg{State: s}) }),
	)
	store := collection.New(deps.Client, collection.WithDebounce(deps.SearchDebounce))

	form := models.DefaultForm()
	var recent []string
	if deps.DB != nil && deps.DBErr == nil {
		saved, err := db.LoadFormData(deps.DB)
		if err != nil {
			logging.Warnf("restore form: %v", err)
		}
		form = saved
		if recent, err = db.RecentPrompts(deps.DB, RecentPromptLimit); err != nil {
			logging.Warnf("load recent prompts: %v", err)
		}
	}
	ti.SetValue(form.Prompt)

	format := deps.ExportFormat
	if format == "" {
		format = "md"
	}
	exportDir := deps.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	return Model{
		Prompt:        ti,
		Search:        search,
		Detail:        viewport.New(60, 12),
		ModalView:     viewport.New(ModalWidth-6, 15),
		Spinner:       sp,
		Renderer:      renderer,
		Engine:        engine,
		Store:         store,
		Sync:          viewsync.New(store),
		Client:        deps.Client,
		DB:            deps.DB,
		DBErr:         deps.DBErr,
		out:           out,
		Options:       models.DefaultOptions,
		Form:          form,
		Focus:         FocusPrompt,
		Stories:       models.CollectionView{Scope: models.ScopeAll},
		PromptChoices: promptChoices(recent, models.DefaultOptions.Examples),
		promptIdx:     -1,
		ExportDir:     exportDir,
		ExportFormat:  format,
		Now:           time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.Prompt.Cursor.BlinkCmd(),
		m.loadCmd(models.ScopeAll, ""),
		m.optionsCmd(),
	)
}

func NewProgram(deps Deps) *tea.Program {
	styles.InitTheme()
	if deps.GlamourStyle == "" {
		deps.GlamourStyle = "dark"
		if !lipgloss.HasDarkBackground() {
			deps.GlamourStyle = "light"
		}
	}
	m := InitialModel(deps)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.Program = p
	m.out.attach(p.Send)
	return p
}
