package backend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quill/internal/models"
)

var ErrStoryNotFound = errors.New("story not found")

// Memory is an in-process story collection. It stands in for the real
// service's storage during development and tests.
type Memory struct {
	mu      sync.RWMutex
	stories []models.Item
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Seed inserts items as-is, assigning ids and timestamps only where missing.
func (m *Memory) Seed(items ...models.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = models.Timestamp{Time: m.now()}
		}
		m.stories = append(m.stories, it)
	}
}

// Add stores a newly generated story and returns it with its id.
func (m *Memory) Add(it models.Item) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it.ID = uuid.NewString()
	it.CreatedAt = models.Timestamp{Time: m.now()}
	it.Favorite = false
	it.WordCount = len(strings.Fields(it.Content))
	m.stories = append(m.stories, it)
	return it
}

func newestFirst(items []models.Item) []models.Item {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt.Time)
	})
	return items
}

func (m *Memory) filter(keep func(models.Item) bool) []models.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Item, 0, len(m.stories))
	for _, it := range m.stories {
		if keep(it) {
			out = append(out, it)
		}
	}
	return newestFirst(out)
}

func (m *Memory) All() []models.Item {
	return m.filter(func(models.Item) bool { return true })
}

func (m *Memory) Favorites() []models.Item {
	return m.filter(func(it models.Item) bool { return it.Favorite })
}

// Search matches q case-insensitively against content, prompt and genre.
func (m *Memory) Search(q string) []models.Item {
	q = strings.ToLower(q)
	return m.filter(func(it models.Item) bool {
		return strings.Contains(strings.ToLower(it.Content), q) ||
			strings.Contains(strings.ToLower(it.Prompt), q) ||
			strings.Contains(strings.ToLower(it.Genre), q)
	})
}

func (m *Memory) Get(id string) (models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.stories {
		if it.ID == id {
			return it, nil
		}
	}
	return models.Item{}, ErrStoryNotFound
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.stories {
		if it.ID == id {
			m.stories = append(m.stories[:i], m.stories[i+1:]...)
			return nil
		}
	}
	return ErrStoryNotFound
}

func (m *Memory) ToggleFavorite(id string) (models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stories {
		if m.stories[i].ID == id {
			m.stories[i].Favorite = !m.stories[i].Favorite
			return m.stories[i], nil
		}
	}
	return models.Item{}, ErrStoryNotFound
}

func (m *Memory) Stats() models.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := models.Stats{
		Genres:    map[string]int{},
		Tones:     map[string]int{},
		Languages: map[string]int{},
	}
	for _, it := range m.stories {
		st.TotalStories++
		st.TotalWords += it.WordCount
		if it.Favorite {
			st.Favorites++
		}
		st.Genres[orUnknown(it.Genre)]++
		st.Tones[orUnknown(it.Tone)]++
		st.Languages[orUnknown(it.Language)]++
	}
	if st.TotalStories > 0 {
		st.AverageWords = st.TotalWords / st.TotalStories
	}
	return st
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
