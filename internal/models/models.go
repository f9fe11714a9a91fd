package models

// Scope selects which subset of the collection a view reflects
type Scope int

const (
	ScopeAll       Scope = iota // Every story, newest first
	ScopeFavorites              // Only stories with favorite=true
)

func (s Scope) String() string {
	if s == ScopeFavorites {
		return "favorites"
	}
	return "all"
}

// Toggle returns the other scope.
func (s Scope) Toggle() Scope {
	if s == ScopeFavorites {
		return ScopeAll
	}
	return ScopeFavorites
}

// Action is a mutation that can be applied to a single story.
type Action int

const (
	ActionFavorite Action = iota
	ActionDelete
)

func (a Action) String() string {
	if a == ActionDelete {
		return "delete"
	}
	return "favorite"
}

type GenerationRequest struct {
	Prompt   string `json:"prompt"`
	Genre    string `json:"genre"`
	Tone     string `json:"tone"`
	Length   string `json:"length"`
	Language string `json:"language"`
	Stream   bool   `json:"stream"`
}

// Item is the server-authoritative story record. ID is empty until the
// server has assigned one.
type Item struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Content   string    `json:"content"`
	Genre     string    `json:"genre"`
	Tone      string    `json:"tone"`
	Length    string    `json:"length,omitempty"`
	Language  string    `json:"language"`
	WordCount int       `json:"word_count"`
	Favorite  bool      `json:"favorite"`
	CreatedAt Timestamp `json:"created_at"`
}

// HasID reports whether id-dependent actions (favorite, re-fetch) are possible.
func (it Item) HasID() bool {
	return it.ID != ""
}

// CollectionView is one full snapshot of the list. It is never patched;
// every refresh produces a new one.
type CollectionView struct {
	Items []Item
	Scope Scope
	Term  string
}

// Len returns the number of items in the view.
func (v CollectionView) Len() int {
	return len(v.Items)
}

// Find returns the item with the given id, if present.
func (v CollectionView) Find(id string) (Item, bool) {
	for _, it := range v.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

type Stats struct {
	TotalStories int            `json:"total_stories"`
	TotalWords   int            `json:"total_words"`
	AverageWords int            `json:"average_words"`
	Favorites    int            `json:"favorites"`
	Genres       map[string]int `json:"genres"`
	Tones        map[string]int `json:"tones"`
	Languages    map[string]int `json:"languages,omitempty"`
}

// FormData is the last-entered form state that survives restarts.
type FormData struct {
	Prompt   string `json:"prompt"`
	Genre    string `json:"genre"`
	Tone     string `json:"tone"`
	Length   string `json:"length"`
	Language string `json:"language"`
}

// Request builds the generation request for the current form values.
func (f FormData) Request() GenerationRequest {
	return GenerationRequest{
		Prompt:   f.Prompt,
		Genre:    f.Genre,
		Tone:     f.Tone,
		Length:   f.Length,
		Language: f.Language,
		Stream:   true,
	}
}

// LengthOption describes a target story length.
type LengthOption struct {
	Key   string
	Label string
	Min   int
	Max   int
}

// Options lists the selectable generation values shown in the form.
type Options struct {
	Genres    []string
	Tones     []string
	Lengths   []LengthOption
	Languages []string
	Examples  []string
}

var DefaultOptions = Options{
	Genres: []string{"Fantasy", "Sci-Fi", "Mystery", "Romance", "Horror", "Children's"},
	Tones:  []string{"Serious", "Funny", "Inspirational", "Dramatic"},
	Lengths: []LengthOption{
		{Key: "short", Label: "Short (100-300 words)", Min: 100, Max: 300},
		{Key: "medium", Label: "Medium (300-600 words)", Min: 300, Max: 600},
		{Key: "long", Label: "Long (600+ words)", Min: 600, Max: 1000},
	},
	Languages: []string{"English", "Urdu", "Arabic", "Spanish", "French", "German"},
	Examples: []string{
		"A dragon who wanted to become a chef",
		"A robot learning to love in a world without emotions",
		"A detective solving crimes in a haunted mansion",
		"Two strangers meeting on a train to nowhere",
		"A child discovering a magical door in their closet",
		"An astronaut finding signs of ancient civilization on Mars",
	},
}

// LengthKeys returns the length option keys in display order.
func (o Options) LengthKeys() []string {
	keys := make([]string, len(o.Lengths))
	for i, l := range o.Lengths {
		keys[i] = l.Key
	}
	return keys
}

// LengthByKey looks up a length option, falling back to medium.
func (o Options) LengthByKey(key string) LengthOption {
	for _, l := range o.Lengths {
		if l.Key == key {
			return l
		}
	}
	for _, l := range o.Lengths {
		if l.Key == "medium" {
			return l
		}
	}
	return LengthOption{Key: "medium", Min: 300, Max: 600}
}

// DefaultForm is the form a fresh install, or a reset, starts from.
func DefaultForm() FormData {
	return FormData{
		Genre:    DefaultOptions.Genres[0],
		Tone:     DefaultOptions.Tones[0],
		Length:   "medium",
		Language: DefaultOptions.Languages[0],
	}
}
