// Package docs serves the built-in documentation articles behind the
// docs command.
package docs

import "fmt"

// Topic is one documentation article, addressable by its slug.
type Topic struct {
	Name    string // slug accepted as a CLI argument
	Title   string
	Summary string // one line, shown in the topic listing
	Content string // plain text body, no ANSI
}

// byName indexes topics for lookup; the topics slice stays ordered for
// display.
var byName = func() map[string]Topic {
	m := make(map[string]Topic, len(topics))
	for _, t := range topics {
		m[t.Name] = t
	}
	return m
}()

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get returns the named topic.
func Get(name string) (Topic, error) {
	t, ok := byName[name]
	if !ok {
		return Topic{}, fmt.Errorf("unknown topic %q — run 'loom docs' to list available topics", name)
	}
	return t, nil
}

// SchemaReference returns the topology reference article. Guided init embeds
// it in the generation prompt so produced documents match the real schema.
func SchemaReference() string {
	return topicTopology
}
