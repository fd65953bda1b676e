package tui

// Color constants for the attempt view.
const (
	ColorBorder = "#3A3F55"

	ColorPrimaryText   = "#E6EAF2"
	ColorSecondaryText = "#B1B8C7"
	ColorHelpText      = "240"

	ColorAccentMain   = "#2563EB"
	ColorAccentBright = "#60A5FA"

	ColorError   = "#EF4444"
	ColorSuccess = "#22C55E"
	ColorWarning = "#F59E0B"
)

// Remaining-time thresholds, in seconds, for the countdown colour.
const (
	warnBelow   = 5 * 60
	dangerBelow = 60
)
