package plates

import "regexp"

// Alphabet maps character class ids of the glyph detector to symbols
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Format is one of the accepted plate layouts.
// D stands for a digit and L for a latin letter.
type Format string

const (
	FormatNone Format = ""
	// DDLDDDLL, e.g. 01A123BC
	FormatOld Format = "old"
	// LDDDDLL, e.g. A1234BC
	FormatPrivate Format = "private"
	// LLDDDDLL, e.g. AA1234BB
	FormatState Format = "state"
	// LLDDDDD, e.g. TP12345
	FormatTemporary Format = "temporary"
)

var plateFormats = []struct {
	format Format
	re     *regexp.Regexp
}{
	{FormatOld, regexp.MustCompile(`^[0-9]{2}[A-Za-z][0-9]{3}[A-Za-z]{2}$`)},
	{FormatPrivate, regexp.MustCompile(`^[A-Za-z][0-9]{4}[A-Za-z]{2}$`)},
	{FormatState, regexp.MustCompile(`^[A-Za-z]{2}[0-9]{4}[A-Za-z]{2}$`)},
	{FormatTemporary, regexp.MustCompile(`^[A-Za-z]{2}[0-9]{5}$`)},
}

// PlateFormat returns layout which text fully matches or FormatNone.
// Layouts have distinct shapes so at most one can match.
func PlateFormat(text string) Format {
	for _, f := range plateFormats {
		if f.re.MatchString(text) {
			return f.format
		}
	}
	return FormatNone
}

// ValidPlate reports whether text is a complete plate number
func ValidPlate(text string) bool {
	return PlateFormat(text) != FormatNone
}
