package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herewego/transfer-admin/internal/processing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "Here we go!!!   Chelsea", want: "Here we go Chelsea"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Check https://example.com for info", want: "Check for info"},
		{name: "entities", input: "Medical &amp; contract", want: "Medical contract"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.CleanText(tt.input); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "Paris Saint-Germain", processing.NormalizeName("  Paris   Saint-Germain \n"))
	require.Equal(t, "Brighton & Hove Albion", processing.NormalizeName("Brighton &amp; Hove Albion"))
	require.Equal(t, "", processing.NormalizeName("   "))
}

func TestNormalizeSummary(t *testing.T) {
	in := "  Agreement   reached.  \n\n\n  Medical   tomorrow. "
	require.Equal(t, "Agreement reached.\nMedical tomorrow.", processing.NormalizeSummary(in))
	require.Equal(t, "", processing.NormalizeSummary(""))
}

func TestExtractKeywords(t *testing.T) {
	text := "Chelsea agree fee fee fee with Brighton for Caicedo Caicedo, the deal is done"
	got := processing.ExtractKeywords(text, 3, 3)
	require.Equal(t, []string{"fee", "caicedo", "agree"}, got)

	require.Nil(t, processing.ExtractKeywords("", 5, 3))
}

func TestExtractKeywordsIgnoresURLWords(t *testing.T) {
	text := "Medical medical https://example.com/rice-arsenal booked"
	got := processing.ExtractKeywords(text, 3, 3)
	require.ElementsMatch(t, []string{"medical", "booked"}, got)
}

func TestRemoveURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "no urls", input: "Hello world", want: "Hello world"},
		{name: "single url", input: "Check https://example.com for more", want: "Check   for more"},
		{name: "url only", input: "https://example.com", want: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.RemoveURLs(tt.input))
		})
	}
}
