package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opened a front-matter
// block but never closed it.
var ErrMissingClosingDelimiter = errors.New("front matter opening delimiter found but closing delimiter is missing")

var (
	yamlDelim = []byte("---")
	tomlDelim = []byte("+++")
)

// SplitFrontMatter separates front matter from the Markdown body. Both YAML
// (`---` fences) and TOML (`+++` fences) blocks are accepted.
//
// If the document does not start with a delimiter, had is false and body is
// the full input.
func SplitFrontMatter(raw []byte) (meta FrontMatter, body []byte, had bool, err error) {
	var delim []byte
	isTOML := false
	switch {
	case hasDelimiterPrefix(raw, yamlDelim):
		delim = yamlDelim
	case hasDelimiterPrefix(raw, tomlDelim):
		delim = tomlDelim
		isTOML = true
	default:
		return FrontMatter{}, raw, false, nil
	}

	rest := raw[len(delim):]
	if len(rest) > 0 && rest[0] == '\r' {
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	}

	end := findClosingDelimiter(rest, delim)
	if end.block < 0 {
		return FrontMatter{}, nil, false, ErrMissingClosingDelimiter
	}

	block := rest[:end.block]
	body = rest[end.body:]

	fields := map[string]any{}
	if isTOML {
		err = toml.Unmarshal(block, &fields)
	} else {
		err = yaml.Unmarshal(block, &fields)
	}
	if err != nil {
		return FrontMatter{}, nil, true, err
	}

	meta, err = coerceFrontMatter(fields)
	return meta, bytes.TrimLeft(body, "\r\n"), true, err
}

func hasDelimiterPrefix(raw, delim []byte) bool {
	if !bytes.HasPrefix(raw, delim) {
		return false
	}
	rest := raw[len(delim):]
	return len(rest) == 0 || rest[0] == '\n' || rest[0] == '\r'
}

type delimiterPos struct {
	block int // end of the front-matter block
	body  int // start of the body
}

// findClosingDelimiter locates a closing fence on its own line.
func findClosingDelimiter(rest, delim []byte) delimiterPos {
	if hasDelimiterPrefix(rest, delim) {
		// Empty front-matter block.
		return delimiterPos{block: 0, body: skipLine(rest, len(delim))}
	}
	search := append([]byte("\n"), delim...)
	idx := bytes.Index(rest, search)
	for idx >= 0 {
		after := idx + len(search)
		if after >= len(rest) || rest[after] == '\n' || rest[after] == '\r' {
			return delimiterPos{block: idx + 1, body: skipLine(rest, after)}
		}
		next := bytes.Index(rest[idx+1:], search)
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return delimiterPos{block: -1, body: -1}
}

func skipLine(b []byte, from int) int {
	for from < len(b) && (b[from] == '\r' || b[from] == '\n') {
		from++
		if from > 0 && b[from-1] == '\n' {
			break
		}
	}
	return from
}

// dateFormats lists the accepted front-matter date layouts, most specific
// first.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceFrontMatter(fields map[string]any) (FrontMatter, error) {
	meta := FrontMatter{Extra: map[string]any{}}
	for key, value := range fields {
		switch key {
		case "title":
			meta.Title = fmt.Sprint(value)
		case "date":
			d, err := coerceDate(value)
			if err != nil {
				return meta, fmt.Errorf("front matter date: %w", err)
			}
			meta.Date = d
		case "tags":
			meta.Tags = coerceTags(value)
		case "template":
			meta.Template = strings.TrimSuffix(fmt.Sprint(value), ".html")
		default:
			meta.Extra[key] = value
		}
	}
	return meta, nil
}

func coerceDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateFormats {
			if d, err := time.Parse(layout, s); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", value)
	}
}

// coerceTags accepts both a YAML list and the legacy comma-separated string.
func coerceTags(value any) []string {
	var out []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"`)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
