package display

import (
	"fmt"
	"os"

	"github.com/backmassage/pngcrunch/internal/term"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner() {
	fmt.Fprintln(os.Stdout, term.Paint(term.Magenta, `                                              _
 _ __  _ __   __ _  ___ _ __ _   _ _ __   ___| |__
| '_ \| '_ \ / _`+"`"+` |/ __| '__| | | | '_ \ / __| '_ \
| |_) | | | | (_| | (__| |  | |_| | | | | (__| | | |
| .__/|_| |_|\__, |\___|_|   \__,_|_| |_|\___|_| |_|
|_|          |___/`))
}
