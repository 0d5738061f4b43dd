package nverr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := RenderFailed("posts/a.md", fmt.Errorf("template exploded"))
	require.Equal(t, "render (error): render failed node=posts/a.md: template exploded", err.Error())
}

func TestErrorUnwrapAndClassification(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := LoadFailed("pages/x.md", cause)

	require.ErrorIs(t, err, cause)
	require.True(t, Is(err, CategoryLoad))
	require.False(t, Is(err, CategoryRender))
	require.False(t, Fatal(err))

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("scan: %w", err)
	require.True(t, Is(wrapped, CategoryLoad))
}

func TestFatalSeverity(t *testing.T) {
	require.True(t, Fatal(CycleDetected([]string{"a", "b", "a"})))
	require.True(t, Fatal(ConfigNotFound("novos.toml")))
	require.False(t, Fatal(ShortcodeNotFound("p", "note")))
	require.False(t, Fatal(errors.New("plain")))
}

func TestCycleDetected_PathRendering(t *testing.T) {
	err := CycleDetected([]string{"includes/a.html", "includes/b.html", "includes/a.html"})
	require.Contains(t, err.Error(), "includes/a.html -> includes/b.html -> includes/a.html")
}

func TestWithContext_Sorted(t *testing.T) {
	err := New(CategoryOutput, SeverityError, "write failed").
		WithContext("path", "out.html").
		WithContext("attempt", 2)
	require.Equal(t, "output (error): write failed attempt=2 path=out.html", err.Error())
}
