package ui

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"

	"quill/internal/api"
	"quill/internal/backend"
	"quill/internal/db"
	"quill/internal/models"
	"quill/internal/viewsync"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	t         *testing.T
	m         *Model
	mem       *backend.Memory
	db        *sql.DB
	generates atomic.Int32

	mu   sync.Mutex
	sent []tea.Msg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, mem: backend.NewMemory()}
	router := backend.NewServer(h.mem, backend.ScriptedGenerator{}).Router()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			h.generates.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	conn, err := db.OpenQuillDB(filepath.Join(t.TempDir(), "quill.db"))
	if err != nil {
		t.Fatalf("OpenQuillDB failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	h.db = conn

	model := InitialModel(Deps{
		Client:         api.NewClient(srv.URL, srv.Client()),
		DB:             conn,
		SearchDebounce: 20 * time.Millisecond,
		ExportDir:      t.TempDir(),
	})
	model.out.attach(func(msg tea.Msg) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, msg)
	})
	h.m = &model
	h.update(tea.WindowSizeMsg{Width: 140, Height: 45})
	return h
}

// run executes cmd and feeds every message it produces back into the
// model. Commands that block longer than a moment, like toast timers, are
// dropped.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(300 * time.Millisecond):
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			h.run(c)
		}
		return
	}
	h.drainSent()
	h.update(msg)
}

func (h *harness) drainSent() {
	h.mu.Lock()
	sent := h.sent
	h.sent = nil
	h.mu.Unlock()
	for _, msg := range sent {
		_, _ = h.m.Update(msg)
	}
}

func (h *harness) update(msg tea.Msg) {
	if msg == nil {
		return
	}
	_, cmd := h.m.Update(msg)
	h.run(cmd)
}

func (h *harness) key(k tea.KeyType) {
	h.update(tea.KeyMsg{Type: k})
}

func (h *harness) runes(s string) {
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) lastToast() string {
	if len(h.m.Toasts) == 0 {
		return ""
	}
	return h.m.Toasts[len(h.m.Toasts)-1].Text
}

func (h *harness) seed(items ...models.Item) {
	h.mem.Seed(items...)
	h.run(h.m.reloadCmd(""))
}

func story(id string, minute int, fav bool) models.Item {
	return models.Item{
		ID:        id,
		Prompt:    "prompt " + id,
		Content:   "content of " + id,
		Genre:     "Fantasy",
		Tone:      "Serious",
		Language:  "English",
		Favorite:  fav,
		CreatedAt: models.Timestamp{Time: time.Date(2024, 2, 1, 10, minute, 0, 0, time.UTC)},
	}
}

func TestEmptyPromptNeverRequests(t *testing.T) {
	h := newHarness(t)
	h.m.Prompt.SetValue("   ")
	h.m.syncPrompt()
	h.key(tea.KeyEnter)

	if h.m.Generating {
		t.Error("empty prompt must not start a session")
	}
	if got := h.lastToast(); got != "Please enter a story idea" {
		t.Errorf("toast = %q", got)
	}
	if n := h.generates.Load(); n != 0 {
		t.Errorf("/generate called %d times", n)
	}
}

func TestGenerateSettlesIntoDetailPanel(t *testing.T) {
	h := newHarness(t)
	h.m.Form.Tone = "Epic"
	h.m.Prompt.SetValue("a dragon and a knight")
	h.m.syncPrompt()

	_, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !h.m.Generating {
		t.Fatal("enter should start generating")
	}
	h.run(cmd)

	if h.m.Generating {
		t.Fatal("session should have settled")
	}
	cur := h.m.Selection.Current
	if cur == nil {
		t.Fatal("detail panel is empty")
	}
	if cur.Genre != "Fantasy" || cur.Tone != "Epic" || cur.Language != "English" {
		t.Errorf("detail item = %+v", *cur)
	}
	if cur.WordCount != len(strings.Fields(cur.Content)) || cur.WordCount == 0 {
		t.Errorf("word count %d for %q", cur.WordCount, cur.Content)
	}
	stored := h.mem.All()
	if len(stored) != 1 || cur.ID != stored[0].ID {
		t.Errorf("detail id %q, stored %+v", cur.ID, stored)
	}
	if h.m.Markup == "" {
		t.Error("settled story should have rendered markup")
	}
	if h.m.Stories.Len() != 1 {
		t.Errorf("list should be reloaded after settling, has %d", h.m.Stories.Len())
	}
	if !strings.Contains(h.m.Detail.View(), "Fantasy Story") {
		t.Error("detail panel should show the story header")
	}

	recent, _ := db.RecentPrompts(h.db, 5)
	if len(recent) != 1 || recent[0] != "a dragon and a knight" {
		t.Errorf("recent prompts = %v", recent)
	}
}

func TestOptionChangesPersist(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyTab)
	if h.m.Focus != FocusGenre {
		t.Fatalf("focus = %v", h.m.Focus)
	}
	h.key(tea.KeyRight)
	h.key(tea.KeyTab)
	h.key(tea.KeyLeft)

	saved, err := db.LoadFormData(h.db)
	if err != nil {
		t.Fatalf("LoadFormData failed: %v", err)
	}
	if saved.Genre != "Sci-Fi" || saved.Tone != "Dramatic" {
		t.Errorf("saved form = %+v", saved)
	}

	h.key(tea.KeyCtrlN)
	if h.m.Form != models.DefaultForm() || h.m.Focus != FocusPrompt {
		t.Errorf("reset form = %+v focus %v", h.m.Form, h.m.Focus)
	}
	if got := h.lastToast(); got != "Ready for a new story!" {
		t.Errorf("toast = %q", got)
	}
	saved, _ = db.LoadFormData(h.db)
	if saved != models.DefaultForm() {
		t.Errorf("reset should clear the saved record, got %+v", saved)
	}
}

func TestCardFavoriteUpdatesDetail(t *testing.T) {
	h := newHarness(t)
	h.seed(story("a", 1, false), story("b", 2, false))
	a, _ := h.m.Stories.Find("a")
	h.m.Selection = viewsync.Show(h.m.Selection, a)

	h.m.setFocus(FocusList)
	h.key(tea.KeyDown)
	if it, _ := h.m.selectedCard(); it.ID != "a" {
		t.Fatalf("selected card = %q", it.ID)
	}
	h.runes("f")

	if !h.m.Selection.Current.Favorite {
		t.Error("detail panel should pick up the favorite from the card")
	}
	if it, _ := h.m.Stories.Find("a"); !it.Favorite {
		t.Error("list should be refreshed")
	}
	if got := h.lastToast(); got != "Favorite updated!" {
		t.Errorf("toast = %q", got)
	}
}

func TestModalFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(story("a", 1, false))
	h.m.setFocus(FocusList)
	h.key(tea.KeyEnter)

	if h.m.Selection.Modal == nil || h.m.Selection.Modal.ID != "a" {
		t.Fatalf("modal = %+v", h.m.Selection.Modal)
	}
	if !strings.Contains(h.m.View(), "content of a") {
		t.Error("modal should show the story")
	}

	h.runes("f")
	if !h.m.Selection.Modal.Favorite {
		t.Error("modal favorite should flip")
	}

	h.runes("d")
	if !strings.HasPrefix(h.lastToast(), "Story downloaded to ") {
		t.Errorf("toast = %q", h.lastToast())
	}
	files, _ := filepath.Glob(filepath.Join(h.m.ExportDir, "story_fantasy_*.md"))
	if len(files) != 1 {
		t.Errorf("exported files = %v", files)
	}

	h.key(tea.KeyEsc)
	if h.m.Selection.Modal != nil {
		t.Error("esc should close the modal")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.seed(story("a", 1, false), story("b", 2, false))
	h.m.setFocus(FocusList)

	h.runes("x")
	if h.m.ConfirmDelete != "b" {
		t.Fatalf("ConfirmDelete = %q", h.m.ConfirmDelete)
	}
	h.runes("n")
	if h.m.ConfirmDelete != "" || h.m.Stories.Len() != 2 {
		t.Fatal("cancel should keep the story")
	}

	h.runes("x")
	h.runes("y")
	if h.m.Stories.Len() != 1 || len(h.mem.All()) != 1 {
		t.Errorf("view %d, server %d; want 1 each", h.m.Stories.Len(), len(h.mem.All()))
	}
	if got := h.lastToast(); got != "Story deleted" {
		t.Errorf("toast = %q", got)
	}
}

func TestScopeToggleAndStats(t *testing.T) {
	h := newHarness(t)
	h.seed(story("a", 1, true), story("b", 2, false), story("c", 3, true))

	h.key(tea.KeyCtrlF)
	if h.m.Stories.Scope != models.ScopeFavorites || h.m.Stories.Len() != 2 {
		t.Errorf("favorites view = %+v", h.m.Stories)
	}
	h.key(tea.KeyCtrlF)
	if h.m.Stories.Scope != models.ScopeAll || h.m.Stories.Len() != 3 {
		t.Errorf("all view = %+v", h.m.Stories)
	}

	h.key(tea.KeyCtrlT)
	if !h.m.StatsOpen || h.m.Stats.Favorites != 2 || h.m.Stats.TotalStories != 3 {
		t.Errorf("stats = %+v open %v", h.m.Stats, h.m.StatsOpen)
	}
	if !strings.Contains(h.m.View(), "Story Statistics") {
		t.Error("stats modal not rendered")
	}
	h.key(tea.KeyEsc)
	if h.m.StatsOpen {
		t.Error("esc should close stats")
	}
}

func TestPromptChoicesCycle(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlR)
	if h.m.Form.Prompt != models.DefaultOptions.Examples[0] {
		t.Errorf("prompt = %q", h.m.Form.Prompt)
	}
	if got := h.lastToast(); got != "Prompt loaded!" {
		t.Errorf("toast = %q", got)
	}
	saved, _ := db.LoadFormData(h.db)
	if saved.Prompt != models.DefaultOptions.Examples[0] {
		t.Errorf("loaded prompt should persist, saved %q", saved.Prompt)
	}
}

func TestToastExpires(t *testing.T) {
	h := newHarness(t)
	_ = h.m.toast("one", ToastSuccess)
	_ = h.m.toast("two", ToastError)
	id := h.m.Toasts[0].ID
	h.update(ToastExpiredMsg{ID: id})
	if len(h.m.Toasts) != 1 || h.m.Toasts[0].Text != "two" {
		t.Errorf("toasts = %+v", h.m.Toasts)
	}
}

func TestCycle(t *testing.T) {
	vals := []string{"a", "b", "c"}
	tests := []struct {
		cur   string
		delta int
		want  string
	}{
		{"a", 1, "b"},
		{"c", 1, "a"},
		{"a", -1, "c"},
		{"zz", 1, "a"},
	}
	for _, tt := range tests {
		if got := Cycle(vals, tt.cur, tt.delta); got != tt.want {
			t.Errorf("Cycle(%q, %d) = %q, want %q", tt.cur, tt.delta, got, tt.want)
		}
	}
}

func TestMergeSelection(t *testing.T) {
	a := models.Item{ID: "a"}
	aFav := models.Item{ID: "a", Favorite: true}
	b := models.Item{ID: "b"}

	cur := viewsync.Selection{Current: &a, Modal: &b}
	next := viewsync.Selection{Current: &aFav, Modal: &aFav}
	got := mergeSelection(cur, next)
	if !got.Current.Favorite {
		t.Error("same story in detail should adopt the update")
	}
	if got.Modal.ID != "b" {
		t.Error("modal now shows another story and must be kept")
	}
}
