package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"quill/internal/collection"
	"quill/internal/db"
	"quill/internal/export"
	"quill/internal/logging"
	"quill/internal/models"
	"quill/internal/session"
	"quill/internal/viewsync"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.Generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		m.refreshDetail()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		if m.Generating {
			m.State = msg.State
			m.refreshDetail()
		}
		return m, nil

	case FragmentMsg:
		if m.Generating {
			m.Streamed = msg.Text
			m.refreshDetail()
			m.Detail.GotoBottom()
		}
		return m, nil

	case SettledMsg:
		m.Generating = false
		m.State = session.StateSettled
		m.Streamed = ""
		m.Selection = viewsync.Show(m.Selection, msg.Result.Item)
		m.Markup = msg.Result.Markup
		m.refreshDetail()
		m.Detail.GotoTop()
		return m, tea.Batch(m.toast("Story generated successfully!", ToastSuccess), m.reloadCmd(""))

	case GenerateErrMsg:
		m.Generating = false
		m.State = session.StateErrored
		m.refreshDetail()
		logging.Errorf("generation failed: %v", msg.Err)
		text := "Failed to generate story"
		switch {
		case errors.Is(msg.Err, session.ErrEmptyPrompt):
			text = "Please enter a story idea"
		case errors.Is(msg.Err, session.ErrBusy):
			text = "A story is already being generated"
		}
		return m, m.toast(text, ToastError)

	case ViewMsg:
		if msg.Err != nil {
			logging.Errorf("load stories: %v", msg.Err)
			return m, m.toast("Error loading stories", ToastError)
		}
		m.setView(msg.View)
		if msg.Success != "" {
			return m, m.toast(msg.Success, ToastSuccess)
		}
		return m, nil

	case SearchMsg:
		if msg.Err != nil {
			logging.Errorf("search: %v", msg.Err)
			return m, m.toast("Error searching stories", ToastError)
		}
		m.setView(msg.View)
		return m, nil

	case OutcomeMsg:
		if msg.Outcome.Changed {
			m.Selection = mergeSelection(m.Selection, msg.Outcome.Selection)
			m.refreshDetail()
			m.refreshModal()
		}
		if msg.Err != nil {
			logging.Errorf("%s failed: %v", msg.Action, msg.Err)
			switch {
			case errors.Is(msg.Err, collection.ErrRefreshFailed):
				return m, m.toast("Error loading stories", ToastError)
			case msg.Action == models.ActionDelete:
				return m, m.toast("Error deleting story", ToastError)
			}
			return m, m.toast("Error updating favorite", ToastError)
		}
		m.setView(msg.Outcome.View)
		if !msg.Outcome.Changed {
			return m, nil
		}
		if msg.Action == models.ActionDelete {
			return m, m.toast("Story deleted", ToastSuccess)
		}
		return m, m.toast("Favorite updated!", ToastSuccess)

	case ModalMsg:
		if msg.Err != nil {
			logging.Errorf("open story: %v", msg.Err)
			return m, m.toast("Error loading story", ToastError)
		}
		m.Selection.Modal = msg.Selection.Modal
		m.ModalMarkup = m.render(m.Selection.Modal.Content)
		m.refreshModal()
		m.ModalView.GotoTop()
		return m, nil

	case StatsMsg:
		if msg.Err != nil {
			logging.Errorf("stats: %v", msg.Err)
			return m, m.toast("Error loading statistics", ToastError)
		}
		m.Stats = msg.Stats
		m.StatsOpen = true
		return m, nil

	case OptionsMsg:
		if msg.Err != nil {
			logging.Warnf("load options, using built-in catalogs: %v", msg.Err)
			return m, nil
		}
		if len(msg.Options.Genres) > 0 && len(msg.Options.Tones) > 0 && len(msg.Options.Lengths) > 0 && len(msg.Options.Languages) > 0 {
			if len(msg.Options.Examples) == 0 {
				msg.Options.Examples = m.Options.Examples
			}
			m.Options = msg.Options
		}
		return m, nil

	case ToastExpiredMsg:
		for i, t := range m.Toasts {
			if t.ID == msg.ID {
				m.Toasts = append(m.Toasts[:i], m.Toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 80 {
			ModalWidth = 80
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.Focus {
	case FocusPrompt:
		m.Prompt, cmd = m.Prompt.Update(msg)
	case FocusSearch:
		m.Search, cmd = m.Search.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.Store.CancelSearch()
		return m, tea.Quit
	}

	if m.ConfirmDelete != "" {
		switch key {
		case "y", "Y", "enter":
			id := m.ConfirmDelete
			m.ConfirmDelete = ""
			return m, m.deleteCmd(id)
		case "n", "N", "esc":
			m.ConfirmDelete = ""
		}
		return m, nil
	}

	if m.StatsOpen {
		switch key {
		case "esc", "enter", "ctrl+t":
			m.StatsOpen = false
		}
		return m, nil
	}

	if m.ShortcutsOpen {
		switch key {
		case "esc", "enter", "?", "ctrl+s":
			m.ShortcutsOpen = false
		}
		return m, nil
	}

	if m.Selection.Modal != nil {
		it := *m.Selection.Modal
		switch key {
		case "esc":
			m.Selection = viewsync.CloseModal(m.Selection)
			m.ModalMarkup = ""
		case "f":
			return m, m.favoriteCmd(viewsync.SurfaceModal, it)
		case "c":
			return m, m.copyStory(it)
		case "d":
			return m, m.downloadStory(it)
		case "x":
			m.ConfirmDelete = it.ID
		default:
			var cmd tea.Cmd
			m.ModalView, cmd = m.ModalView.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key {
	case "tab":
		m.setFocus((m.Focus + 1) % focusCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.Focus + focusCount - 1) % focusCount)
		return m, nil
	case "ctrl+n":
		return m, m.resetForm()
	case "ctrl+f":
		m.Search.SetValue("")
		m.Store.CancelSearch()
		return m, m.toggleScopeCmd()
	case "ctrl+t":
		return m, m.statsCmd()
	case "ctrl+e":
		m.Expanded = !m.Expanded
		m.layout()
		return m, nil
	case "ctrl+s":
		m.ShortcutsOpen = true
		return m, nil
	case "ctrl+y":
		if m.Selection.Current != nil {
			return m, m.copyStory(*m.Selection.Current)
		}
		return m, nil
	case "ctrl+d":
		if m.Selection.Current != nil {
			return m, m.downloadStory(*m.Selection.Current)
		}
		return m, nil
	case "ctrl+b":
		if m.Selection.Current != nil {
			return m, m.favoriteCmd(viewsync.SurfaceDetail, *m.Selection.Current)
		}
		return m, nil
	case "ctrl+r":
		return m, m.nextPromptChoice()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.Detail, cmd = m.Detail.Update(msg)
		return m, cmd
	case "esc":
		if m.Expanded {
			m.Expanded = false
			m.layout()
		} else if m.Search.Value() != "" {
			m.Search.SetValue("")
			m.Store.CancelSearch()
			return m, m.reloadCmd("")
		}
		return m, nil
	}

	switch m.Focus {
	case FocusPrompt:
		if isNewlineShortcut(msg) {
			m.Prompt.InsertString("\n")
			m.syncPrompt()
			return m, nil
		}
		if key == "enter" {
			return m, m.startGeneration()
		}
		var cmd tea.Cmd
		m.Prompt, cmd = m.Prompt.Update(msg)
		m.syncPrompt()
		return m, cmd

	case FocusGenre, FocusTone, FocusLength, FocusLanguage:
		switch key {
		case "left", "h":
			m.cycleOption(-1)
		case "right", "l", " ":
			m.cycleOption(1)
		case "enter":
			return m, m.startGeneration()
		}
		return m, nil

	case FocusSearch:
		before := m.Search.Value()
		var cmd tea.Cmd
		m.Search, cmd = m.Search.Update(msg)
		if term := m.Search.Value(); term != before {
			m.Store.SearchDebounced(context.Background(), term, func(v models.CollectionView, err error) {
				m.out.Send(SearchMsg{View: v, Err: err})
			})
		}
		if key == "enter" || key == "down" {
			m.setFocus(FocusList)
		}
		return m, cmd

	case FocusList:
		items := m.Stories.Items
		switch key {
		case "up", "k":
			if len(items) > 0 {
				m.ListIdx = (m.ListIdx - 1 + len(items)) % len(items)
			}
		case "down", "j":
			if len(items) > 0 {
				m.ListIdx = (m.ListIdx + 1) % len(items)
			}
		case "enter":
			if it, ok := m.selectedCard(); ok {
				return m, m.openCmd(it.ID)
			}
		case "f":
			if it, ok := m.selectedCard(); ok {
				return m, m.favoriteCmd(viewsync.SurfaceCard, it)
			}
		case "x":
			if it, ok := m.selectedCard(); ok {
				m.ConfirmDelete = it.ID
			}
		}
		return m, nil
	}
	return m, nil
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) setFocus(f Focus) {
	m.Focus = f
	m.Prompt.Blur()
	m.Search.Blur()
	switch f {
	case FocusPrompt:
		m.Prompt.Focus()
	case FocusSearch:
		m.Search.Focus()
	}
}

func (m *Model) selectedCard() (models.Item, bool) {
	if m.ListIdx < 0 || m.ListIdx >= len(m.Stories.Items) {
		return models.Item{}, false
	}
	return m.Stories.Items[m.ListIdx], true
}

func (m *Model) setView(v models.CollectionView) {
	m.Stories = v
	if m.ListIdx >= len(v.Items) {
		m.ListIdx = len(v.Items) - 1
	}
	if m.ListIdx < 0 {
		m.ListIdx = 0
	}
}

// syncPrompt copies the textarea into the form and persists it if it changed.
func (m *Model) syncPrompt() {
	if v := m.Prompt.Value(); v != m.Form.Prompt {
		m.Form.Prompt = v
		m.persistForm()
	}
	m.updateInputLayout()
}

func (m *Model) cycleOption(delta int) {
	switch m.Focus {
	case FocusGenre:
		m.Form.Genre = Cycle(m.Options.Genres, m.Form.Genre, delta)
	case FocusTone:
		m.Form.Tone = Cycle(m.Options.Tones, m.Form.Tone, delta)
	case FocusLength:
		m.Form.Length = Cycle(m.Options.LengthKeys(), m.Form.Length, delta)
	case FocusLanguage:
		m.Form.Language = Cycle(m.Options.Languages, m.Form.Language, delta)
	default:
		return
	}
	m.persistForm()
}

func (m *Model) persistForm() {
	if m.DB == nil || m.DBErr != nil {
		return
	}
	if err := db.SaveFormData(m.DB, m.Form, m.Now().Unix()); err != nil {
		logging.Warnf("save form: %v", err)
	}
}

func (m *Model) resetForm() tea.Cmd {
	m.Form = models.DefaultForm()
	m.Prompt.Reset()
	m.promptIdx = -1
	if m.DB != nil && m.DBErr == nil {
		if err := db.ClearFormData(m.DB); err != nil {
			logging.Warnf("clear form: %v", err)
		}
	}
	if !m.Generating {
		m.Selection.Current = nil
		m.Markup = ""
		m.Streamed = ""
		m.State = session.StateIdle
	}
	m.setFocus(FocusPrompt)
	m.updateInputLayout()
	m.refreshDetail()
	return m.toast("Ready for a new story!", ToastSuccess)
}

func (m *Model) nextPromptChoice() tea.Cmd {
	if len(m.PromptChoices) == 0 {
		return nil
	}
	m.promptIdx = (m.promptIdx + 1) % len(m.PromptChoices)
	m.Prompt.SetValue(m.PromptChoices[m.promptIdx])
	m.setFocus(FocusPrompt)
	m.syncPrompt()
	return m.toast("Prompt loaded!", ToastSuccess)
}

func (m *Model) startGeneration() tea.Cmd {
	if m.Generating || m.Engine.Busy() {
		return m.toast("A story is already being generated", ToastError)
	}
	if strings.TrimSpace(m.Form.Prompt) == "" {
		return m.toast("Please enter a story idea", ToastError)
	}
	req := m.Form.Request()

	if m.DB != nil && m.DBErr == nil {
		if err := db.RecordPrompt(m.DB, req.Prompt, m.Now().Unix()); err != nil {
			logging.Warnf("record prompt: %v", err)
		}
	}

	m.Generating = true
	m.State = session.StateRequesting
	m.Streamed = ""
	m.Markup = ""
	m.Selection.Current = nil
	m.refreshDetail()
	return tea.Batch(m.generateCmd(req), m.Spinner.Tick)
}

func (m *Model) copyStory(it models.Item) tea.Cmd {
	if err := export.Copy(it); err != nil {
		logging.Warnf("copy: %v", err)
		return m.toast("Nothing to copy", ToastError)
	}
	return m.toast("Copied to clipboard!", ToastSuccess)
}

func (m *Model) downloadStory(it models.Item) tea.Cmd {
	path, err := export.Save(m.ExportDir, m.ExportFormat, it, m.Now())
	if err != nil {
		logging.Errorf("export: %v", err)
		return m.toast("Error downloading story", ToastError)
	}
	logging.WithField("path", path).Info("story exported")
	return m.toast(fmt.Sprintf("Story downloaded to %s", path), ToastSuccess)
}

func (m *Model) toast(text string, kind ToastKind) tea.Cmd {
	m.nextToast++
	id := m.nextToast
	m.Toasts = append(m.Toasts, Toast{ID: id, Text: text, Kind: kind})
	if len(m.Toasts) > MaxToasts {
		m.Toasts = m.Toasts[len(m.Toasts)-MaxToasts:]
	}
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: id}
	})
}

func (m *Model) render(content string) string {
	out, err := m.Renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

func (m *Model) generateCmd(req models.GenerationRequest) tea.Cmd {
	engine := m.Engine
	out := m.out
	return func() tea.Msg {
		res, err := engine.Generate(context.Background(), req, func(accumulated string) {
			out.Send(FragmentMsg{Text: accumulated})
		})
		if err != nil {
			return GenerateErrMsg{Err: err}
		}
		return SettledMsg{Result: res}
	}
}

func (m *Model) loadCmd(scope models.Scope, success string) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		v, err := store.Load(context.Background(), scope)
		return ViewMsg{View: v, Err: err, Success: success}
	}
}

func (m *Model) reloadCmd(success string) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		v, err := store.Reload(context.Background())
		return ViewMsg{View: v, Err: err, Success: success}
	}
}

func (m *Model) toggleScopeCmd() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		v, err := store.ToggleScope(context.Background())
		return ViewMsg{View: v, Err: err}
	}
}

func (m *Model) favoriteCmd(surface viewsync.Surface, it models.Item) tea.Cmd {
	if !it.HasID() {
		return nil
	}
	vs, sel := m.Sync, m.Selection
	return func() tea.Msg {
		out, err := vs.ToggleFavorite(context.Background(), sel, surface, it)
		return OutcomeMsg{Outcome: out, Action: models.ActionFavorite, Err: err}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	vs, sel := m.Sync, m.Selection
	return func() tea.Msg {
		out, err := vs.Delete(context.Background(), sel, id)
		return OutcomeMsg{Outcome: out, Action: models.ActionDelete, Err: err}
	}
}

func (m *Model) openCmd(id string) tea.Cmd {
	vs, sel := m.Sync, m.Selection
	return func() tea.Msg {
		next, err := vs.Open(context.Background(), sel, id)
		return ModalMsg{Selection: next, Err: err}
	}
}

func (m *Model) statsCmd() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		st, err := store.Stats(context.Background())
		return StatsMsg{Stats: st, Err: err}
	}
}

func (m *Model) optionsCmd() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		opts, err := client.Options(context.Background())
		return OptionsMsg{Options: opts, Err: err}
	}
}
