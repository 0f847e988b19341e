package docgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fsh-formation/templater/internal/docx"
)

func joinedText(runs []docx.RichRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func TestRenderRichTextEmpty(t *testing.T) {
	require.Nil(t, RenderRichText(""))
}

func TestRenderRichTextPlainLine(t *testing.T) {
	runs := RenderRichText("Objectifs de la formation")
	require.Len(t, runs, 1)
	require.Equal(t, "Objectifs de la formation", runs[0].Text)
	require.False(t, runs[0].Bold)
	require.False(t, runs[0].Italic)
	require.Equal(t, docx.ListNone, runs[0].List)
	require.False(t, runs[0].BreakBefore)
}

func TestRenderRichTextBulletList(t *testing.T) {
	runs := RenderRichText("- premier point\n- second point")
	require.Len(t, runs, 2)
	require.Equal(t, "premier point", runs[0].Text)
	require.Equal(t, docx.ListBullet, runs[0].List)
	require.False(t, runs[0].BreakBefore)
	require.Equal(t, "second point", runs[1].Text)
	require.Equal(t, docx.ListBullet, runs[1].List)
	require.True(t, runs[1].BreakBefore)
}

func TestRenderRichTextStarBullets(t *testing.T) {
	runs := RenderRichText("* un\n* deux")
	require.Len(t, runs, 2)
	require.Equal(t, docx.ListBullet, runs[0].List)
	require.Equal(t, "un", runs[0].Text)
	require.Equal(t, "deux", runs[1].Text)
}

func TestRenderRichTextNumberedList(t *testing.T) {
	runs := RenderRichText("1. accueil\n2. pratique\n10. bilan")
	require.Len(t, runs, 3)
	for _, r := range runs {
		require.Equal(t, docx.ListNumbered, r.List)
	}
	require.Equal(t, "accueil", runs[0].Text)
	require.Equal(t, "bilan", runs[2].Text)
}

func TestRenderRichTextBoldAndItalic(t *testing.T) {
	runs := RenderRichText("avant **gras** puis *penché* fin")
	require.Len(t, runs, 5)
	require.Equal(t, "avant ", runs[0].Text)
	require.Equal(t, "gras", runs[1].Text)
	require.True(t, runs[1].Bold)
	require.Equal(t, " puis ", runs[2].Text)
	require.Equal(t, "penché", runs[3].Text)
	require.True(t, runs[3].Italic)
	require.Equal(t, " fin", runs[4].Text)
	require.False(t, runs[4].Bold)
	require.False(t, runs[4].Italic)
}

func TestRenderRichTextBoldInsideBullet(t *testing.T) {
	runs := RenderRichText("- point **fort** ici")
	require.Len(t, runs, 3)
	for _, r := range runs {
		require.Equal(t, docx.ListBullet, r.List)
	}
	require.True(t, runs[1].Bold)
	require.Equal(t, "point fort ici", joinedText(runs))
}

func TestRenderRichTextUnclosedMarkersStayLiteral(t *testing.T) {
	runs := RenderRichText("prix **affiché et *remisé")
	require.Len(t, runs, 1)
	require.Equal(t, "prix **affiché et *remisé", runs[0].Text)
	require.False(t, runs[0].Bold)
	require.False(t, runs[0].Italic)
}

func TestRenderRichTextItalicNeverClosesOnBoldMarker(t *testing.T) {
	runs := RenderRichText("*italic**")
	require.Len(t, runs, 1)
	require.Equal(t, "*italic**", runs[0].Text)
	require.False(t, runs[0].Italic)
	require.False(t, runs[0].Bold)
}

func TestRenderRichTextItalicSpansUnclosedBoldMarker(t *testing.T) {
	runs := RenderRichText("*a**b*")
	require.Len(t, runs, 1)
	require.Equal(t, "a**b", runs[0].Text)
	require.True(t, runs[0].Italic)
	require.False(t, runs[0].Bold)
}

func TestRenderRichTextBlankLineKept(t *testing.T) {
	runs := RenderRichText("premier\n\nsecond")
	require.Len(t, runs, 3)
	require.Equal(t, "", runs[1].Text)
	require.True(t, runs[1].BreakBefore)
	require.Equal(t, "second", runs[2].Text)
	require.True(t, runs[2].BreakBefore)
}

func TestRenderRichTextCRLF(t *testing.T) {
	runs := RenderRichText("un\r\ndeux")
	require.Len(t, runs, 2)
	require.Equal(t, "deux", runs[1].Text)
	require.True(t, runs[1].BreakBefore)
}

func TestRenderRichTextConcatenationPreservesContent(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"simple texte", "simple texte"},
		{"**a** et *b*", "a et b"},
		{"- un\n- deux", "undeux"},
		{"1. x\ntexte", "xtexte"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, joinedText(RenderRichText(tc.src)), "source %q", tc.src)
	}
}
