package trigger

import (
	"path"
	"regexp"
	"strings"
)

// DefaultFilename is used when the response does not name its attachment.
const DefaultFilename = "scraped_tax_data.xlsx"

// reDispositionFilename captures a quoted or unquoted filename parameter.
// The first alternative that matches wins, so a well-formed quoted value is
// preferred over the raw remainder of the parameter.
var reDispositionFilename = regexp.MustCompile(`(?i)filename[^;=\n]*=("[^"]*"|'[^']*'|[^;\n]*)`)

// FilenameFromDisposition derives the save name from a Content-Disposition
// header value. Quote characters are stripped and the result is reduced to
// a base name. Anything unusable yields DefaultFilename.
func FilenameFromDisposition(disposition string) string {
	if disposition == "" || !strings.Contains(strings.ToLower(disposition), "attachment") {
		return DefaultFilename
	}

	m := reDispositionFilename.FindStringSubmatch(disposition)
	if m == nil || m[1] == "" {
		return DefaultFilename
	}

	name := strings.NewReplacer(`"`, "", `'`, "").Replace(m[1])
	name = strings.TrimSpace(name)

	// Never let the server pick a directory.
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return DefaultFilename
	}
	return name
}
