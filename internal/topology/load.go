package topology

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Load when the named topology does not exist.
var ErrNotFound = errors.New("topology not found")

// DocumentName is the file holding the phase list within a topology directory.
const DocumentName = "topology.yaml"

// BaseDir returns the directory topologies live under for a project.
func BaseDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".loom", "topologies")
}

// Load reads the named topology from baseDir and resolves every referenced
// role instruction file. If the directory is absent and name is the built-in
// default, the bundled default is deployed first.
func Load(baseDir, name string) (*LoadedTopology, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(baseDir, name)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("topology: checking %s: %w", dir, err)
		}
		if name != DefaultName {
			return nil, fmt.Errorf("topology %q not found in %s: %w", name, baseDir, ErrNotFound)
		}
		if err := DeployDefault(baseDir); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, DocumentName))
	if err != nil {
		return nil, fmt.Errorf("topology: reading %s: %w", filepath.Join(dir, DocumentName), err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}

	roles := make(map[string]string)
	for _, role := range t.RoleSet() {
		path := filepath.Join(dir, role+".md")
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("topology: role %q referenced by topology but instruction file not found (expected %s)", role, path)
			}
			return nil, fmt.Errorf("topology: reading role %q: %w", role, err)
		}
		roles[role] = string(content)
	}

	return &LoadedTopology{Topology: t, Roles: roles, Dir: dir}, nil
}

// Parse decodes a topology document, rejecting unknown fields, and validates
// it. Malformed documents are hard errors; there is no partial load.
func Parse(data []byte) (*Topology, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Topology
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("topology: document is empty")
		}
		return nil, fmt.Errorf("topology: %w", err)
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Serialize renders a topology back to YAML. Parse(Serialize(t)) yields a
// topology equal to t for any validated t.
func Serialize(t *Topology) ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("topology: serializing %q: %w", t.Name, err)
	}
	return data, nil
}
