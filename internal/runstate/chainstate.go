package runstate

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ChainState is a terminal-failure snapshot written for human diagnosis.
// The engine writes it once per failure and never reads it back during a run.
type ChainState struct {
	RunID           string    `yaml:"run_id"`
	Topology        string    `yaml:"topology"`
	CompletedPhases []string  `yaml:"completed_phases"`
	FailedPhase     string    `yaml:"failed_phase"`
	FailureReason   string    `yaml:"failure_reason"`
	RecordedAt      time.Time `yaml:"recorded_at"`
}

func chainStatePath(runDir string) string {
	return filepath.Join(runDir, "chain-state.yaml")
}

// Record writes the snapshot into the run directory. Write failures are
// logged and swallowed: losing the diagnostic artifact must never mask the
// failure being reported.
func Record(log *zap.Logger, runDir string, cs ChainState) {
	if log == nil {
		log = zap.NewNop()
	}
	cs.RecordedAt = time.Now().UTC()
	data, err := yaml.Marshal(&cs)
	if err != nil {
		log.Warn("could not encode chain state", zap.Error(err))
		return
	}
	if err := writeFileAtomic(chainStatePath(runDir), data, 0o644); err != nil {
		log.Warn("could not record chain state",
			zap.String("run_id", cs.RunID),
			zap.Error(err))
	}
}

// LoadChainState reads a previously recorded snapshot. Diagnosis commands
// use it; the orchestrator itself never does.
func LoadChainState(runDir string) (*ChainState, error) {
	data, err := os.ReadFile(chainStatePath(runDir))
	if err != nil {
		return nil, err
	}
	var cs ChainState
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}
