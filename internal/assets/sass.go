// Package assets wraps the external byte-transform collaborators: the
// Sass-to-CSS compiler and the HTML/CSS minifier. The pipeline consumes them
// as black-box functions; orchestration and dependency tracking stay in the
// build and render packages.
package assets

import (
	"regexp"
)

// SassCompiler turns SCSS source into CSS, or fails. The engine itself is an
// external collaborator; novos only orchestrates when it runs and where its
// output lands.
type SassCompiler func(name string, src []byte) ([]byte, error)

// PassthroughSass is the default compiler: it emits the source unchanged,
// which is correct for the CSS-compatible subset of SCSS. Projects that use
// real Sass features inject a full compiler at startup.
func PassthroughSass(_ string, src []byte) ([]byte, error) {
	return src, nil
}

var sassImportRe = regexp.MustCompile(`@(?:import|use)\s+['"]([^'"]+)['"]`)

// SassImports extracts the names referenced by @import/@use rules, so the
// loader can track partials as producers of the compiled stylesheet.
func SassImports(src []byte) []string {
	var names []string
	for _, m := range sassImportRe.FindAllSubmatch(src, -1) {
		names = append(names, string(m[1]))
	}
	return names
}
