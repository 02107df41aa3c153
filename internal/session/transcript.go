package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Transcript is the conversation log of one session. The first line of the
// on-disk form records the round counter; the body holds the alternating
// USER/ASSISTANT entries fed back to the intake role each round.
type Transcript struct {
	Round int
	Body  string
}

const roundPrefix = "ROUND: "

func transcriptPath(dir string, kind Kind, identity string) string {
	return filepath.Join(dir, string(kind)+"-"+slugIdentity(identity)+".txt")
}

// slugIdentity makes an identity safe to embed in a file name.
func slugIdentity(identity string) string {
	var b strings.Builder
	for _, r := range identity {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func loadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	header, body, _ := strings.Cut(string(data), "\n")
	if !strings.HasPrefix(header, roundPrefix) {
		return nil, fmt.Errorf("session: malformed transcript header %q", header)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, roundPrefix)))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("session: malformed transcript round %q", header)
	}
	return &Transcript{Round: n, Body: strings.TrimPrefix(body, "\n")}, nil
}

// Append adds one entry to the conversation body.
func (t *Transcript) Append(speaker, text string) {
	if t.Body != "" && !strings.HasSuffix(t.Body, "\n") {
		t.Body += "\n"
	}
	t.Body += speaker + ": " + strings.TrimSpace(text) + "\n"
}

// Save writes the transcript, round header first. A torn write surfaces as
// a malformed header on the next load and the session heals itself.
func (t *Transcript) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content := fmt.Sprintf("%s%d\n\n%s", roundPrefix, t.Round, t.Body)
	return os.WriteFile(path, []byte(content), 0o644)
}
