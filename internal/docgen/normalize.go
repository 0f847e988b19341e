package docgen

import (
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fsh-formation/templater/internal/docx"
)

// FieldKind classifies a data-store field for normalization. The kind
// comes from the table schema, never from the runtime shape of a value.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindDate
	KindCurrency
	KindRichText
	KindLinked
)

// FieldTypes reports the normalization kind of each field in a table.
type FieldTypes interface {
	Kind(field string) FieldKind
}

// ScalarTypes is the zero-schema fallback: every field normalizes as a
// plain scalar.
type ScalarTypes struct{}

func (ScalarTypes) Kind(string) FieldKind { return KindScalar }

const linkedSeparator = ", "

// Normalizer converts raw field values into template-ready render
// values: a string, or a RichRun sequence for rich-text fields. Values
// that are absent or of unexpected shape degrade to an empty value and
// a warning log entry; Normalize never fails.
type Normalizer struct {
	logger *slog.Logger
	french *message.Printer
}

// NewNormalizer constructs a Normalizer. A nil logger disables
// warnings.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		logger: logger,
		french: message.NewPrinter(language.French),
	}
}

// Normalize maps one field value into a render value according to its
// schema kind.
func (n *Normalizer) Normalize(v any, kind FieldKind) any {
	if v == nil {
		if kind == KindRichText {
			return []docx.RichRun(nil)
		}
		return ""
	}
	switch kind {
	case KindDate:
		return n.normalizeDate(v)
	case KindCurrency:
		return n.normalizeCurrency(v)
	case KindRichText:
		return RenderRichText(n.joinText(v))
	case KindLinked:
		return n.normalizeLinked(v)
	default:
		return n.scalar(v)
	}
}

func (n *Normalizer) normalizeDate(v any) string {
	s, ok := v.(string)
	if !ok {
		n.warn("date field has non-string value", v)
		return ""
	}
	formatted, ok := dayMonthYear(s)
	if !ok {
		n.warn("date field is unparseable", s)
		return ""
	}
	return formatted
}

func (n *Normalizer) normalizeCurrency(v any) string {
	switch num := v.(type) {
	case float64:
		return n.french.Sprintf("%v", num)
	case int:
		return n.french.Sprintf("%v", num)
	case int64:
		return n.french.Sprintf("%v", num)
	default:
		return n.scalar(v)
	}
}

// normalizeLinked flattens linked-record and lookup arrays: a single
// element unwraps, several join with a separator, none is empty.
func (n *Normalizer) normalizeLinked(v any) string {
	items, ok := v.([]any)
	if !ok {
		return n.scalar(v)
	}
	switch len(items) {
	case 0:
		return ""
	case 1:
		return n.scalar(items[0])
	default:
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = n.scalar(item)
		}
		return strings.Join(parts, linkedSeparator)
	}
}

// joinText flattens rich-text lookups (arrays of markup fragments) into
// one source string before rendering.
func (n *Normalizer) joinText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := n.scalar(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return n.scalar(v)
	}
}

func (n *Normalizer) scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		// lookups occasionally arrive where the schema promises a
		// scalar; flatten instead of leaking a Go representation
		return n.normalizeLinked(val)
	default:
		n.warn("field value has unexpected shape", v)
		return ""
	}
}

func (n *Normalizer) warn(msg string, v any) {
	if n.logger == nil {
		return
	}
	n.logger.Warn(msg, slog.Any("value", v))
}
