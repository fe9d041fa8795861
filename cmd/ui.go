package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// out is where the banner and reports go; logs go through slog.
var out io.Writer = os.Stdout

var logoSmall = `
        _      __       _
  _ __ (_)_  _/ _| __ _| | _____ _ __
 | '_ \| \ \/ / |_ / _' | |/ / _ \ '__|
 | |_) | |>  <|  _| (_| |   <  __/ |
 | .__/|_/_/\_\_|  \__,_|_|\_\___|_|
 |_|
`

func PrintLogoSmall() {
	fmt.Fprint(out, Cyan+Bold)
	fmt.Fprintln(out, logoSmall)
	fmt.Fprint(out, Reset)
}

func PrintHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(out)
	fmt.Fprint(out, Cyan)
	fmt.Fprintln(out, "  ╭"+strings.Repeat("─", width)+"╮")
	fmt.Fprintf(out, "  │%s %s%s%s %s│\n",
		strings.Repeat(" ", padding),
		Bold+White, title, Reset+Cyan,
		strings.Repeat(" ", width-padding-len(title)-2))
	fmt.Fprintln(out, "  ╰"+strings.Repeat("─", width)+"╯")
	fmt.Fprint(out, Reset)
}

func PrintSection(title string) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s%s▸ %s%s\n", Bold, Magenta, title, Reset)
	fmt.Fprintf(out, "  %s%s%s\n", Dim, strings.Repeat("─", 48), Reset)
}

func PrintKeyValue(key, value string) {
	fmt.Fprintf(out, "  %s%-20s%s %s%s%s\n", Dim, key, Reset, White, value, Reset)
}

func PrintKeyValueHighlight(key, value string) {
	fmt.Fprintf(out, "  %s%-20s%s %s%s%s%s\n", Dim, key, Reset, Bold, Cyan, value, Reset)
}

func PrintSuccess(msg string) {
	fmt.Fprintf(out, "\n  %s%s✓ %s%s\n", Bold, Green, msg, Reset)
}

func PrintError(msg string) {
	fmt.Fprintf(out, "\n  %s%s✗ %s%s\n", Bold, Red, msg, Reset)
}

func PrintWarning(msg string) {
	fmt.Fprintf(out, "\n  %s%s⚠ %s%s\n", Bold, Yellow, msg, Reset)
}

func PrintInfo(msg string) {
	fmt.Fprintf(out, "  %s%s→ %s%s\n", Dim, Cyan, msg, Reset)
}

func PrintCommand(cmd string) {
	fmt.Fprintf(out, "  %s%s$ %s%s\n", Bold, Green, cmd, Reset)
}

func PrintDivider() {
	fmt.Fprintf(out, "\n  %s%s%s\n", Dim, strings.Repeat("─", 50), Reset)
}

func PrintStatus(label, status, color string) {
	fmt.Fprintf(out, "  %s%-20s%s [%s%s%s%s]\n", Dim, label, Reset, Bold, color, status, Reset)
}

func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
