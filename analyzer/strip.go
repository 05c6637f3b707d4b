package analyzer

import "regexp"

// csiPattern matches ANSI CSI sequences: ESC [ ... final-byte.
var csiPattern = regexp.MustCompile("\x1b\\[[0-9;?]*[a-zA-Z]")

// oscPattern matches ANSI OSC sequences: ESC ] ... terminated by BEL or ST (ESC \).
var oscPattern = regexp.MustCompile("\x1b\\][^\x07\x1b]*(\x07|\x1b\\\\)")

// stripControlSequences removes terminal control sequences (CSI and OSC
// forms) so downstream regex matching sees only visible text.
func stripControlSequences(text string) string {
	text = oscPattern.ReplaceAllString(text, "")
	text = csiPattern.ReplaceAllString(text, "")
	return text
}
