package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseShortcodes(t *testing.T) {
	body := []byte(`intro <% .note "be careful" %> middle <% .figure img.png "a caption" %> end`)
	calls := ParseShortcodes(body)
	require.Len(t, calls, 2)

	require.Equal(t, "note", calls[0].Name)
	require.Equal(t, []string{"be careful"}, calls[0].Args)

	require.Equal(t, "figure", calls[1].Name)
	require.Equal(t, []string{"img.png", "a caption"}, calls[1].Args)

	// Offsets slice the original body exactly.
	require.Equal(t, `<% .note "be careful" %>`, string(body[calls[0].Start:calls[0].End]))
}

func TestParseShortcodes_NoArgs(t *testing.T) {
	calls := ParseShortcodes([]byte(`<% .toc %>`))
	require.Len(t, calls, 1)
	require.Equal(t, "toc", calls[0].Name)
	require.Empty(t, calls[0].Args)
}

func TestParseShortcodes_IgnoresInterpolationTokens(t *testing.T) {
	// Expression tokens use the `<%= ... =%>` form and are not invocations.
	calls := ParseShortcodes([]byte(`<%= .arg1 =%> and plain text`))
	require.Empty(t, calls)
}

func TestShortcodeNames_Distinct(t *testing.T) {
	body := []byte(`<% .note a %> <% .note b %> <% .figure x %>`)
	require.Equal(t, []string{"note", "figure"}, ShortcodeNames(body))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Héllo Wörld", "hello-world"},
		{"_colors", "colors"},
		{"2024-03-01-my-post", "2024-03-01-my-post"},
		{"What's New?!", "what-s-new"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Slugify(tc.in), "slug of %q", tc.in)
	}
}
