package scaffold

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spetrey/loom/internal/contextgather"
	"github.com/spetrey/loom/internal/fileblocks"
	"github.com/spetrey/loom/internal/invoke"
	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
)

// maxGenerateAttempts bounds guided generation. The second attempt carries
// the first attempt's validation error as feedback.
const maxGenerateAttempts = 2

// InitGuided scaffolds .loom/ with a topology generated from the project's
// own files. The capability sees the rendered project context plus the
// topology schema and must answer in file= fenced blocks. If generation
// fails validation twice, the bundled defaults are written instead.
func InitGuided(ctx context.Context, inv invoke.Invoker, targetDir string) error {
	if err := refuseExisting(targetDir); err != nil {
		return err
	}

	pc, err := contextgather.Gather(targetDir)
	if err != nil {
		return fmt.Errorf("scaffold: gathering project context: %w", err)
	}
	base := buildGuidedPrompt(pc.Render())

	fmt.Printf("\n%sGenerating a topology from the project context...%s\n", ux.Dim, ux.Reset)

	var (
		blocks []fileblocks.FileBlock
		name   string
	)
	prompt := base
	for attempt := 1; ; attempt++ {
		out, invErr := inv.Invoke(ctx, invoke.Request{
			Role:     "init",
			Prompt:   prompt,
			Tier:     invoke.TierComplex,
			MaxTurns: 30,
			WorkDir:  targetDir,
		})
		genErr := invErr
		if genErr == nil {
			blocks = fileblocks.Parse(out)
			name, genErr = validateGenerated(blocks)
		}
		if genErr == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == maxGenerateAttempts {
			fmt.Printf("\n  %sGeneration failed (%v); falling back to the bundled defaults.%s\n", ux.Yellow, genErr, ux.Reset)
			return Init(targetDir)
		}
		prompt = base + fmt.Sprintf(retryFeedback, genErr)
	}

	written, err := writeBase(targetDir)
	if err != nil {
		return err
	}
	generated, err := writeBlocks(targetDir, blocks)
	if err != nil {
		return err
	}
	written = append(written, generated...)

	printSuccess("generated from project context", written)
	printPipeline(targetDir, name)
	printNextSteps(name)
	return nil
}

// validateGenerated checks capability output before anything touches disk:
// safe paths, exactly one parseable topology document, and an instruction
// block for every role that document references. Returns the topology name.
func validateGenerated(blocks []fileblocks.FileBlock) (string, error) {
	if len(blocks) == 0 {
		return "", fmt.Errorf("output contained no file= blocks")
	}

	have := make(map[string]bool, len(blocks))
	var docs []fileblocks.FileBlock
	for _, b := range blocks {
		if err := checkBlockPath(b.Path); err != nil {
			return "", err
		}
		have[b.Path] = true
		if path.Base(b.Path) == topology.DocumentName {
			docs = append(docs, b)
		}
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no %s block under .loom/topologies/<name>/ (got: %s)",
			topology.DocumentName, strings.Join(fileblocks.Paths(blocks), ", "))
	}
	if len(docs) > 1 {
		return "", fmt.Errorf("more than one %s block", topology.DocumentName)
	}

	doc := docs[0]
	parts := strings.Split(doc.Path, "/")
	if len(parts) != 4 {
		return "", fmt.Errorf("%s must sit directly under .loom/topologies/<name>/, got %q", topology.DocumentName, doc.Path)
	}
	dirName := parts[2]

	t, err := topology.Parse([]byte(doc.Content))
	if err != nil {
		return "", err
	}
	if t.Name != dirName {
		return "", fmt.Errorf("topology name %q does not match its directory %q", t.Name, dirName)
	}

	for _, role := range t.RoleSet() {
		want := ".loom/topologies/" + dirName + "/" + role + ".md"
		if !have[want] {
			return "", fmt.Errorf("role %q referenced by the topology has no %s block", role, want)
		}
	}
	return dirName, nil
}

func checkBlockPath(p string) error {
	if path.IsAbs(p) || p != path.Clean(p) {
		return fmt.Errorf("unsafe file path %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("unsafe file path %q", p)
		}
	}
	if !strings.HasPrefix(p, ".loom/topologies/") {
		return fmt.Errorf("file path %q is outside .loom/topologies/", p)
	}
	return nil
}

func writeBlocks(targetDir string, blocks []fileblocks.FileBlock) ([]string, error) {
	var written []string
	for _, b := range blocks {
		rel := filepath.FromSlash(b.Path)
		full := filepath.Join(targetDir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", rel, err)
		}
		content := b.Content
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", rel, err)
		}
		written = append(written, rel)
	}
	return written, nil
}
