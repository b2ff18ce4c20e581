// Package frontmatter splits Markdown documents into a YAML front matter
// block and a body, and joins them back together.
package frontmatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/blogsync/internal/apperr"
)

const delim = "---"

// Document is a decoded Markdown file.
type Document struct {
	FrontMatter map[string]any
	Body        string
}

// Decode parses data into front matter and body. The front matter must be
// opened and closed by "---" lines; a document without them is rejected
// with apperr.ErrMalformedDocument rather than treated as all body.
// The body is returned exactly as it follows the closing delimiter line.
func Decode(data []byte) (*Document, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.TrimLeft(text, "\r\n")

	line, rest, _ := cutLine(text)
	if line != delim {
		return nil, fmt.Errorf("frontmatter: missing opening delimiter: %w", apperr.ErrMalformedDocument)
	}

	offset := 0
	for {
		line, next, found := cutLine(rest[offset:])
		if line == delim {
			fm, err := unmarshal(rest[:offset])
			if err != nil {
				return nil, err
			}
			return &Document{FrontMatter: fm, Body: next}, nil
		}
		if !found {
			return nil, fmt.Errorf("frontmatter: missing closing delimiter: %w", apperr.ErrMalformedDocument)
		}
		offset = len(rest) - len(next)
	}
}

// Encode renders the document as "---", the YAML front matter with sorted
// keys, "---", then the body verbatim.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(doc.FrontMatter) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc.FrontMatter); err != nil {
			return nil, fmt.Errorf("frontmatter: encode: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("frontmatter: encode: %w", err)
		}
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(doc.Body)
	return buf.Bytes(), nil
}

// String returns the front matter value for key rendered as a string.
// Dates without a time component render as YYYY-MM-DD.
func (d *Document) String(key string) string {
	v, ok := d.FrontMatter[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Require reports which of keys are absent or empty.
func (d *Document) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if d.String(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("frontmatter: missing %s: %w", strings.Join(missing, ", "), apperr.ErrMalformedDocument)
}

func unmarshal(block string) (map[string]any, error) {
	fm := map[string]any{}
	if strings.TrimSpace(block) == "" {
		return fm, nil
	}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, fmt.Errorf("frontmatter: %w: %v", apperr.ErrMalformedDocument, err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, nil
}

func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}
