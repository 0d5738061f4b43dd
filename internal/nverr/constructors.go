package nverr

import "strings"

// Convenience constructors for the common error shapes.

// Load errors (per-file, non-fatal to the scan)

func LoadFailed(path string, cause error) *Error {
	return Wrap(cause, CategoryLoad, SeverityError, "failed to read source file").
		WithContext("path", path)
}

func MalformedFrontMatter(path string, cause error) *Error {
	return Wrap(cause, CategoryLoad, SeverityError, "malformed front matter").
		WithContext("path", path)
}

// UnknownLayout indicates a directory declared in novos.toml does not exist.
func UnknownLayout(dir string) *Error {
	return New(CategoryLoad, SeverityFatal, "configured directory does not exist").
		WithContext("dir", dir)
}

// Cycle errors (fatal, abort before scheduling)

func CycleDetected(path []string) *Error {
	return New(CategoryCycle, SeverityFatal, "template include cycle").
		WithContext("cycle", strings.Join(path, " -> "))
}

// Render errors (localized to one node)

func RenderFailed(node string, cause error) *Error {
	return Wrap(cause, CategoryRender, SeverityError, "render failed").
		WithContext("node", node)
}

func TemplateNotFound(node, template string) *Error {
	return New(CategoryRender, SeverityError, "template not found").
		WithContext("node", node).
		WithContext("template", template)
}

func ShortcodeNotFound(node, shortcode string) *Error {
	return New(CategoryRender, SeverityError, "shortcode not found").
		WithContext("node", node).
		WithContext("shortcode", shortcode)
}

// ShortcodeRecursion reports that shortcode expansion exceeded the nesting
// limit. The node keeps its Failed status; nothing hangs.
func ShortcodeRecursion(node string, depth int) *Error {
	return New(CategoryRender, SeverityError, "shortcode recursion limit exceeded").
		WithContext("node", node).
		WithContext("depth", depth)
}

func SkippedDependency(node, failedProducer string) *Error {
	return New(CategoryRender, SeverityWarning, "skipped: dependency failed").
		WithContext("node", node).
		WithContext("producer", failedProducer)
}

// Index errors (aggregate generation; reported, never rolls back pages)

func IndexFailed(name string, cause error) *Error {
	return Wrap(cause, CategoryIndex, SeverityError, "aggregate index generation failed").
		WithContext("index", name)
}

// Config errors

func ConfigNotFound(path string) *Error {
	return New(CategoryConfig, SeverityFatal, "novos.toml not found, run 'novos init' to begin").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *Error {
	return Wrap(cause, CategoryConfig, SeverityFatal, "invalid configuration").
		WithContext("path", path)
}

// Output errors

func WriteFailed(path string, cause error) *Error {
	return Wrap(cause, CategoryOutput, SeverityError, "failed to write artifact").
		WithContext("path", path)
}
