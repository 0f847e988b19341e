package docx

import "strings"

const (
	bulletNumID   = "1"
	numberedNumID = "2"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// escapeInline escapes a scalar replacement and turns embedded
// newlines into document line breaks within the enclosing run.
func escapeInline(s string) string {
	escaped := escapeXML(s)
	if !strings.Contains(escaped, "\n") {
		return escaped
	}
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", `</w:t><w:br/><w:t xml:space="preserve">`)
}

// runsXML converts a rich-run sequence into document-native runs. The
// tag being replaced sits inside an existing run, so the fragment
// closes that run first and reopens an equivalent one at the end for
// any trailing text. List items and line breaks start new paragraphs.
func runsXML(runs []RichRun) string {
	if len(runs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`</w:t></w:r>`)
	for i, run := range runs {
		if run.BreakBefore || (i == 0 && run.List != ListNone) {
			b.WriteString(`</w:p>`)
			b.WriteString(paragraphOpen(run.List))
		}
		b.WriteString(runXML(run))
	}
	b.WriteString(`<w:r><w:t xml:space="preserve">`)
	return b.String()
}

func paragraphOpen(list ListKind) string {
	switch list {
	case ListBullet:
		return `<w:p><w:pPr><w:pStyle w:val="ListParagraph"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="` + bulletNumID + `"/></w:numPr></w:pPr>`
	case ListNumbered:
		return `<w:p><w:pPr><w:pStyle w:val="ListParagraph"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="` + numberedNumID + `"/></w:numPr></w:pPr>`
	default:
		return `<w:p>`
	}
}

func runXML(run RichRun) string {
	var b strings.Builder
	b.WriteString(`<w:r>`)
	if run.Bold || run.Italic {
		b.WriteString(`<w:rPr>`)
		if run.Bold {
			b.WriteString(`<w:b/>`)
		}
		if run.Italic {
			b.WriteString(`<w:i/>`)
		}
		b.WriteString(`</w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeXML(run.Text))
	b.WriteString(`</w:t></w:r>`)
	return b.String()
}
