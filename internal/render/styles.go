package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/SecScholar/Omni-Decoder/internal/codec"
)

// Scheme colors follow the usual analyst conventions: cool colors for the
// dense byte encodings, warm ones for text-preserving schemes.
var (
	binaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	hexStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	base32Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")) // magenta
	base64Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // grey

	headingStyle = lipgloss.NewStyle().Bold(true)
)

func labelStyle(label codec.Label) lipgloss.Style {
	switch label {
	case codec.LabelBinary:
		return binaryStyle
	case codec.LabelHex:
		return hexStyle
	case codec.LabelURL:
		return urlStyle
	case codec.LabelBase32:
		return base32Style
	case codec.LabelBase64:
		return base64Style
	default:
		return unknownStyle
	}
}
