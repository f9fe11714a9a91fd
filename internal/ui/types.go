package ui

import (
	"database/sql"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"quill/internal/api"
	"quill/internal/collection"
	"quill/internal/models"
	"quill/internal/session"
	"quill/internal/viewsync"
)

const (
	MaxDetailWidth     = 100
	CompactWidthThresh = 100 // Width below which the list moves under the form

	ToastDuration     = 3 * time.Second
	MaxToasts         = 3
	RecentPromptLimit = 10
	CardPreviewRunes  = 90
)

var ModalWidth = 70

// Focus is the form control or panel that receives keys.
type Focus int

const (
	FocusPrompt Focus = iota
	FocusGenre
	FocusTone
	FocusLength
	FocusLanguage
	FocusSearch
	FocusList
	focusCount
)

func (f Focus) String() string {
	return [...]string{"prompt", "genre", "tone", "length", "language", "search", "list"}[f]
}

type ToastKind int

const (
	ToastSuccess ToastKind = iota
	ToastError
)

type Toast struct {
	ID   int
	Text string
	Kind ToastKind
}

type (
	FragmentMsg     struct{ Text string }
	StateMsg        struct{ State session.State }
	SettledMsg      struct{ Result *session.Result }
	GenerateErrMsg  struct{ Err error }
	ToastExpiredMsg struct{ ID int }
)

// ViewMsg carries a replacement collection view. Success, when set, is
// toasted once the view lands.
type ViewMsg struct {
	View    models.CollectionView
	Err     error
	Success string
}

// SearchMsg is the result of a debounced search.
type SearchMsg struct {
	View models.CollectionView
	Err  error
}

// OutcomeMsg is the result of a view-synced mutation.
type OutcomeMsg struct {
	Outcome viewsync.Outcome
	Action  models.Action
	Err     error
}

type ModalMsg struct {
	Selection viewsync.Selection
	Err       error
}

type StatsMsg struct {
	Stats models.Stats
	Err   error
}

type OptionsMsg struct {
	Options models.Options
	Err     error
}

// Deps is everything the UI talks to.
type Deps struct {
	Client            *api.Client
	DB                *sql.DB
	DBErr             error
	SearchDebounce    time.Duration
	StreamIdleTimeout time.Duration
	ExportDir         string
	ExportFormat      string
	// GlamourStyle is a glamour standard style name; empty means notty.
	GlamourStyle string
}

type Model struct {
	Prompt    textarea.Model
	Search    textinput.Model
	Detail    viewport.Model
	ModalView viewport.Model
	Spinner   spinner.Model
	Renderer  *MarkdownFormatter
	Engine    *session.Engine
	Store     *collection.Store
	Sync      *viewsync.Sync
	Client    *api.Client
	DB        *sql.DB
	DBErr     error
	Program   *tea.Program
	out       *outbox

	Options models.Options
	Form    models.FormData
	Focus   Focus

	// Generation
	Generating bool
	State      session.State
	Streamed   string
	Markup     string

	// Surfaces
	Selection     viewsync.Selection
	ModalMarkup   string
	Stories       models.CollectionView
	ListIdx       int
	StatsOpen     bool
	Stats         models.Stats
	ConfirmDelete string
	Expanded      bool
	ShortcutsOpen bool

	Toasts    []Toast
	nextToast int

	PromptChoices []string
	promptIdx     int

	ExportDir    string
	ExportFormat string
	Now          func() time.Time

	WindowWidth  int
	WindowHeight int
}
