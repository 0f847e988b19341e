package docgen

import (
	"strings"

	"github.com/fsh-formation/templater/internal/docx"
)

// RenderRichText converts the constrained markdown subset used by the
// data store (bold, italic, bullet and numbered lists, line breaks)
// into an ordered run sequence. Malformed markup degrades to literal
// text; the concatenated run texts always reproduce the source content
// with list markers and emphasis delimiters stripped.
func RenderRichText(src string) []docx.RichRun {
	if src == "" {
		return nil
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")

	var runs []docx.RichRun
	for i, line := range strings.Split(src, "\n") {
		list := docx.ListNone
		switch {
		case strings.HasPrefix(line, "- "):
			list = docx.ListBullet
			line = line[2:]
		case strings.HasPrefix(line, "* "):
			list = docx.ListBullet
			line = line[2:]
		default:
			if rest, ok := trimNumberMarker(line); ok {
				list = docx.ListNumbered
				line = rest
			}
		}

		lineRuns := scanInline(line)
		if len(lineRuns) == 0 {
			// blank line still separates paragraphs
			lineRuns = []docx.RichRun{{Text: ""}}
		}
		for j := range lineRuns {
			lineRuns[j].List = list
			lineRuns[j].BreakBefore = j == 0 && i > 0
		}
		runs = append(runs, lineRuns...)
	}
	return runs
}

// trimNumberMarker strips a leading "<digits>. " marker.
func trimNumberMarker(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || !strings.HasPrefix(line[i:], ". ") {
		return line, false
	}
	return line[i+2:], true
}

// scanInline splits one line into styled runs. The scanner has three
// states (plain, bold, italic); an emphasis marker only opens a span
// when its closing marker exists further in the line, otherwise the
// characters stay literal.
func scanInline(line string) []docx.RichRun {
	var runs []docx.RichRun
	var cur strings.Builder
	bold, italic := false, false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		runs = append(runs, docx.RichRun{Text: cur.String(), Bold: bold, Italic: italic})
		cur.Reset()
	}

	i := 0
	for i < len(line) {
		if strings.HasPrefix(line[i:], "**") {
			switch {
			case bold:
				flush()
				bold = false
			case strings.Contains(line[i+2:], "**"):
				flush()
				bold = true
			default:
				cur.WriteString("**")
			}
			i += 2
			continue
		}
		if line[i] == '*' {
			switch {
			case italic:
				flush()
				italic = false
			case hasLoneStar(line[i+1:]):
				flush()
				italic = true
			default:
				cur.WriteByte('*')
			}
			i++
			continue
		}
		cur.WriteByte(line[i])
		i++
	}
	flush()
	return runs
}

// hasLoneStar reports whether s contains a single '*' that is not part
// of a "**" marker, so an italic span never closes on the head of a
// bold marker.
func hasLoneStar(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '*' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] == '*' {
			j++
		}
		if j-i == 1 {
			return true
		}
		i = j - 1
	}
	return false
}
