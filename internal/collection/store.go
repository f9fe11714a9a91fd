package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"quill/internal/logging"
	"quill/internal/models"
)

const DefaultDebounce = 300 * time.Millisecond

// ErrRefreshFailed marks a mutation the server applied whose follow-up
// reload failed. The live view is stale but the change itself happened.
var ErrRefreshFailed = errors.New("refresh after mutation failed")

// Source is the slice of the story service the store reads and mutates.
type Source interface {
	List(ctx context.Context, scope models.Scope) ([]models.Item, error)
	Search(ctx context.Context, term string) ([]models.Item, error)
	ToggleFavorite(ctx context.Context, id string) error
	DeleteStory(ctx context.Context, id string) error
	GetStory(ctx context.Context, id string) (models.Item, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// SearchFunc receives the outcome of a debounced search.
type SearchFunc func(view models.CollectionView, err error)

// Store mirrors the server collection for the visible list. Every refresh
// replaces the live view wholesale; results of requests older than the
// live view are discarded.
type Store struct {
	src      Source
	debounce time.Duration

	mu      sync.Mutex
	scope   models.Scope
	target  models.Scope // scope of the newest issued load
	view    models.CollectionView
	issued  uint64
	applied uint64
	timer   *time.Timer
	pending uint64
}

type Option func(*Store)

func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func New(src Source, opts ...Option) *Store {
	s := &Store{src: src, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View returns the live view.
func (s *Store) View() models.CollectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Scope returns the scope of the live view.
func (s *Store) Scope() models.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func sameScope(target models.Scope) models.Scope { return target }

// beginLoad issues a load of the scope chosen by pick from the newest
// requested scope. Choosing and issuing happen under one lock, so
// overlapping toggles alternate instead of racing to the same scope.
func (s *Store) beginLoad(pick func(target models.Scope) models.Scope) (uint64, models.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = pick(s.target)
	s.issued++
	return s.issued, s.target
}

// commit installs view unless a newer request already has. It returns
// whichever view is live afterwards.
func (s *Store) commit(seq uint64, view models.CollectionView) models.CollectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		logging.WithFields(map[string]interface{}{"seq": seq, "live": s.applied}).Debug("discarding stale collection result")
		return s.view
	}
	s.applied = seq
	s.scope = view.Scope
	s.view = view
	return s.view
}

// Load fetches every item in scope and replaces the live view, clearing
// any search term. On failure the previous view stays live.
func (s *Store) Load(ctx context.Context, scope models.Scope) (models.CollectionView, error) {
	seq, _ := s.beginLoad(func(models.Scope) models.Scope { return scope })
	return s.load(ctx, seq, scope)
}

func (s *Store) load(ctx context.Context, seq uint64, scope models.Scope) (models.CollectionView, error) {
	items, err := s.src.List(ctx, scope)
	if err != nil {
		return s.View(), fmt.Errorf("load %s: %w", scope, err)
	}
	return s.commit(seq, models.CollectionView{Items: items, Scope: scope}), nil
}

// Reload re-fetches the most recently requested scope.
func (s *Store) Reload(ctx context.Context) (models.CollectionView, error) {
	seq, scope := s.beginLoad(sameScope)
	return s.load(ctx, seq, scope)
}

// ToggleScope switches between all and favorites and loads the new scope.
// The flip applies to the most recently requested scope, not the one
// currently on screen.
func (s *Store) ToggleScope(ctx context.Context) (models.CollectionView, error) {
	seq, scope := s.beginLoad(models.Scope.Toggle)
	return s.load(ctx, seq, scope)
}

// Search replaces the live view with the server's matches for term. An
// empty term reloads the current scope.
func (s *Store) Search(ctx context.Context, term string) (models.CollectionView, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.Reload(ctx)
	}
	seq, scope := s.beginLoad(sameScope)
	items, err := s.src.Search(ctx, term)
	if err != nil {
		return s.View(), fmt.Errorf("search %q: %w", term, err)
	}
	return s.commit(seq, models.CollectionView{Items: items, Scope: scope, Term: term}), nil
}

// SearchDebounced schedules a search for term after the debounce window.
// A later call within the window replaces the earlier one, so only the
// final term is ever sent.
func (s *Store) SearchDebounced(ctx context.Context, term string, done SearchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending++
	id := s.pending
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		current := s.pending == id
		s.mu.Unlock()
		if !current {
			return
		}
		view, err := s.Search(ctx, term)
		if done != nil {
			done(view, err)
		}
	})
}

// CancelSearch drops any scheduled search.
func (s *Store) CancelSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending++
}

// Mutate applies action to id on the server, then reloads the current
// scope. The list is never patched locally. A failed mutation leaves the
// view untouched.
func (s *Store) Mutate(ctx context.Context, id string, action models.Action) (models.CollectionView, error) {
	var err error
	switch action {
	case models.ActionFavorite:
		err = s.src.ToggleFavorite(ctx, id)
	case models.ActionDelete:
		err = s.src.DeleteStory(ctx, id)
	default:
		err = fmt.Errorf("unknown action %d", action)
	}
	if err != nil {
		return s.View(), fmt.Errorf("%s %s: %w", action, id, err)
	}
	logging.WithFields(map[string]interface{}{"id": id, "action": action.String()}).Info("story mutated")
	view, err := s.Reload(ctx)
	if err != nil {
		return view, fmt.Errorf("%s %s: %w: %w", action, id, ErrRefreshFailed, err)
	}
	return view, nil
}

// Get fetches one story fresh from the server. The live view is not
// touched.
func (s *Store) Get(ctx context.Context, id string) (models.Item, error) {
	it, err := s.src.GetStory(ctx, id)
	if err != nil {
		return models.Item{}, fmt.Errorf("get %s: %w", id, err)
	}
	return it, nil
}

// Stats fetches collection statistics.
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.src.Stats(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// EmptyMessage is the copy shown for a view with no items.
func EmptyMessage(view models.CollectionView) string {
	switch {
	case view.Term != "":
		return fmt.Sprintf("No stories match %q.", view.Term)
	case view.Scope == models.ScopeFavorites:
		return "No favorite stories yet."
	default:
		return "No stories found. Generate your first story!"
	}
}
