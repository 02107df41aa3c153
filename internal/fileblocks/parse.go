// Package fileblocks extracts file-annotated fenced code blocks from
// capability output. Guided init asks the capability to answer only in this
// shape, then turns each block into a file on disk.
package fileblocks

import (
	"regexp"
	"strings"
)

// FileBlock is one extracted file.
type FileBlock struct {
	Path    string // as written in the fence, e.g. ".loom/topologies/web/topology.yaml"
	Content string // text between the fences, without a trailing newline
}

// openRe matches an opening fence carrying a file annotation. The language
// tag is optional:
//
//	```yaml file=.loom/topologies/web/topology.yaml
//	```file=.loom/topologies/web/plan.md
var openRe = regexp.MustCompile("^```\\w*\\s*file=(\\S+)$")

// Parse returns every annotated block in order of appearance. Fences without
// a file= annotation are ignored, as is any block left unclosed at the end
// of the text.
func Parse(text string) []FileBlock {
	var (
		blocks  []FileBlock
		current *FileBlock
		buf     strings.Builder
	)

	for _, line := range strings.Split(text, "\n") {
		if current == nil {
			if m := openRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				current = &FileBlock{Path: m[1]}
				buf.Reset()
			}
			continue
		}

		if strings.TrimSpace(line) == "```" {
			current.Content = buf.String()
			blocks = append(blocks, *current)
			current = nil
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
	}

	return blocks
}

// Paths returns the block paths in order, for error messages.
func Paths(blocks []FileBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Path
	}
	return out
}
