package tui

import "github.com/charmbracelet/lipgloss"

// Palette of the lecture hall.
var (
	colorGold    = lipgloss.Color("#FFD700")
	colorGrey    = lipgloss.Color("#9e9e9e")
	colorSkin    = lipgloss.Color("#e0ac69")
	colorHair    = lipgloss.Color("#d3d3d3")
	colorBeard   = lipgloss.Color("#cfcfcf")
	colorMouth   = lipgloss.Color("#8b0000")
	colorCoat    = lipgloss.Color("#5d4037")
	colorSleeve  = lipgloss.Color("#4e342e")
	colorShirt   = lipgloss.Color("#ffffff")
	colorLectern = lipgloss.Color("#3e2723")
	colorSeat    = lipgloss.Color("#222222")
	colorFault   = lipgloss.Color("#dc2626")
)

// Styles groups every style the view uses.
type Styles struct {
	Title    lipgloss.Style
	Tagline  lipgloss.Style
	Stage    lipgloss.Style
	Subtitle lipgloss.Style
	Button   lipgloss.Style
	Loading  lipgloss.Style
	Fault    lipgloss.Style
	Panel    lipgloss.Style
	Heading  lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the styles used by the lecture view.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorGold),
		Tagline: lipgloss.NewStyle().Foreground(colorGrey),
		Stage: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Background(lipgloss.Color("#0c0c0c")).
			Padding(0, 1),
		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGold).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#806c00")).
			Padding(0, 2).
			Align(lipgloss.Center),
		Button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#6b6b6b")).
			Padding(0, 3),
		Loading: lipgloss.NewStyle().Bold(true).Foreground(colorGold),
		Fault: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorFault).
			Padding(0, 2).
			Align(lipgloss.Center),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(0, 1),
		Heading: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorGold),
		Muted:   lipgloss.NewStyle().Foreground(colorGrey),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
	}
}
