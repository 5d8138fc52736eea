package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Gestures: arms at rest, left arm raised, right arm raised.
const (
	gestureRest = iota
	gestureLeft
	gestureRight
	gestureCount
)

func px(c lipgloss.Color, s string) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

// lecturer draws the voxel lecturer. Every row is the same width so the
// figure centres cleanly.
func lecturer(talking bool, gesture int) string {
	mouth := px(colorMouth, "▁▁")
	if talking {
		mouth = px(colorMouth, "██")
	}

	core := []string{
		px(colorHair, "▄▄▄▄▄▄▄▄"),
		px(colorSkin, "████████"),
		px(colorSkin, "█") + px(colorShirt, "O") + px(colorSkin, "█") + px(colorSleeve, "──") + px(colorSkin, "█") + px(colorShirt, "O") + px(colorSkin, "█"),
		px(colorBeard, "▓▓▓") + mouth + px(colorBeard, "▓▓▓"),
		" " + px(colorBeard, "▓▓▓▓▓▓") + " ",
		px(colorCoat, "███") + px(colorShirt, "▐▌") + px(colorCoat, "███"),
		px(colorCoat, "███") + px(colorShirt, "▐") + px(colorLectern, "▌") + px(colorCoat, "███"),
		px(colorCoat, "███") + px(colorShirt, "▐▌") + px(colorCoat, "███"),
	}

	// Rows 5..7 hold lowered arms, 2..4 raised ones.
	armRows := func(raised bool) map[int]bool {
		if raised {
			return map[int]bool{2: true, 3: true, 4: true}
		}
		return map[int]bool{5: true, 6: true, 7: true}
	}
	left := armRows(gesture == gestureLeft)
	right := armRows(gesture == gestureRight)

	arm := px(colorSleeve, "██")
	var b strings.Builder
	for i, row := range core {
		if left[i] {
			b.WriteString(arm)
		} else {
			b.WriteString("  ")
		}
		b.WriteString(row)
		if right[i] {
			b.WriteString(arm)
		} else {
			b.WriteString("  ")
		}
		b.WriteByte('\n')
	}
	b.WriteString("   " + px(colorLectern, "▛▀▀▀▀▀▀▜") + "   ")
	return b.String()
}

// stage draws the floor and the audience row below the lecturer.
func stage(width int) string {
	if width < 4 {
		width = 4
	}
	floor := px(colorCoat, strings.Repeat("▀", width))
	seats := px(colorSeat, strings.Repeat("▄▄  ", width/4))
	return floor + "\n" + seats
}
