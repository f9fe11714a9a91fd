package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines a complete color scheme for the application
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	TextPrimary lipgloss.Color
	TextMuted   lipgloss.Color

	Success lipgloss.Color
	Error   lipgloss.Color

	Border lipgloss.Color
}

var DarkTheme = Theme{
	Primary:     lipgloss.Color("#818CF8"), // Indigo 400
	Secondary:   lipgloss.Color("#22D3EE"), // Cyan 400
	Accent:      lipgloss.Color("#F472B6"), // Pink 400
	TextPrimary: lipgloss.Color("#F1F5F9"),
	TextMuted:   lipgloss.Color("#64748B"),
	Success:     lipgloss.Color("#34D399"),
	Error:       lipgloss.Color("#FB7185"),
	Border:      lipgloss.Color("#27272A"),
}

var LightTheme = Theme{
	Primary:     lipgloss.Color("#4F46E5"), // Indigo 600
	Secondary:   lipgloss.Color("#0891B2"), // Cyan 600
	Accent:      lipgloss.Color("#DB2777"), // Pink 600
	TextPrimary: lipgloss.Color("#18181B"),
	TextMuted:   lipgloss.Color("#A1A1AA"),
	Success:     lipgloss.Color("#10B981"),
	Error:       lipgloss.Color("#EF4444"),
	Border:      lipgloss.Color("#E4E4E7"),
}

// CurrentTheme holds the active theme (set at runtime based on terminal)
var CurrentTheme = DarkTheme

// GenreColorMap gives each genre badge its own color.
var GenreColorMap = map[string]lipgloss.Color{
	"Fantasy":    lipgloss.Color("#A78BFA"),
	"Sci-Fi":     lipgloss.Color("#22D3EE"),
	"Mystery":    lipgloss.Color("#FBBF24"),
	"Romance":    lipgloss.Color("#F472B6"),
	"Horror":     lipgloss.Color("#FB7185"),
	"Children's": lipgloss.Color("#34D399"),
}

func GetGenreColor(genre string) lipgloss.Color {
	if c, ok := GenreColorMap[genre]; ok {
		return c
	}
	return CurrentTheme.Primary
}

// GenreBadge renders a genre as a colored chip.
func GenreBadge(genre string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#0B0B0F")).
		Background(GetGenreColor(genre)).
		Padding(0, 1).
		Render(genre)
}

// InitTheme sets the current theme based on terminal background
func InitTheme() {
	if lipgloss.HasDarkBackground() {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
}
