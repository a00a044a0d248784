package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	codeColor    = color.New(color.FgHiBlack)

	title = cases.Title(language.English)
)

func severityColor(s Severity) *color.Color {
	switch s {
	case Warning:
		return warningColor
	case Error:
		return errorColor
	default:
		return infoColor
	}
}

// Fprint writes the list in a human readable form, one diagnostic per line
// followed by its location. Colors follow color.NoColor.
func Fprint(w io.Writer, l List) error {
	for _, d := range l {
		sev := severityColor(d.Severity).Sprint(title.String(d.Severity.String()))
		code := codeColor.Sprintf("[%s]", d.Code)
		if _, err := fmt.Fprintf(w, "%s %s %s\n", sev, code, d.Message); err != nil {
			return err
		}
		loc := d.Pos.String()
		if d.Entity != "" {
			loc += " (" + d.Entity + ")"
		}
		if _, err := fmt.Fprintf(w, "  --> %s\n", loc); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns a one-line count of diagnostics by severity.
func Summary(l List) string {
	return fmt.Sprintf("%d error(s), %d warning(s), %d info", l.Count(Error), l.Count(Warning), l.Count(Info))
}
