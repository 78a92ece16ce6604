package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"creditrisk/ml"
)

// FormatVersion guards the on-disk artifact layout. A loader refusing a
// mismatched version is the contract that keeps a stale service from scoring
// with artifacts it cannot interpret.
const FormatVersion = 1

const (
	preprocessorFile = "preprocessor.json"
	modelFile        = "model.json"
)

// ArtifactError reports unreadable or version-mismatched artifacts. At
// service startup this is fatal.
type ArtifactError struct {
	Path string
	Msg  string
}

func (e *ArtifactError) Error() string {
	if e.Path == "" {
		return "artifact: " + e.Msg
	}
	return fmt.Sprintf("artifact: %s: %s", e.Path, e.Msg)
}

// Meta describes a trained model artifact.
type Meta struct {
	Version   int       `json:"version"`
	Family    string    `json:"family"`
	Threshold float64   `json:"threshold"`
	RunID     string    `json:"run_id"`
	TrainedAt time.Time `json:"trained_at"`
	MeanAUC   float64   `json:"mean_auc"`
	TestAUC   float64   `json:"test_auc"`
}

// Bundle is everything the inference side needs: the fitted preprocessor
// state, the trained model and its metadata (threshold included). Immutable
// after load.
type Bundle struct {
	State *ml.PreprocessorState
	Model ml.Classifier
	Meta  Meta
}

type modelPayload struct {
	Meta
	Params json.RawMessage `json:"params"`
}

// Save persists the bundle as preprocessor.json + model.json under dir.
func Save(dir string, bundle *Bundle) error {
	if bundle == nil || bundle.State == nil || bundle.Model == nil {
		return &ArtifactError{Msg: "incomplete bundle"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ArtifactError{Path: dir, Msg: err.Error()}
	}

	statePath := filepath.Join(dir, preprocessorFile)
	stateData, err := json.MarshalIndent(bundle.State, "", "  ")
	if err != nil {
		return &ArtifactError{Path: statePath, Msg: err.Error()}
	}
	if err := os.WriteFile(statePath, stateData, 0o644); err != nil {
		return &ArtifactError{Path: statePath, Msg: err.Error()}
	}

	params, err := bundle.Model.MarshalParams()
	if err != nil {
		return &ArtifactError{Path: dir, Msg: err.Error()}
	}
	meta := bundle.Meta
	meta.Version = FormatVersion
	meta.Family = bundle.Model.Family()
	payload := modelPayload{Meta: meta, Params: params}

	modelPath := filepath.Join(dir, modelFile)
	modelData, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return &ArtifactError{Path: modelPath, Msg: err.Error()}
	}
	if err := os.WriteFile(modelPath, modelData, 0o644); err != nil {
		return &ArtifactError{Path: modelPath, Msg: err.Error()}
	}
	return nil
}

// Load reads and validates a bundle from dir.
func Load(dir string) (*Bundle, error) {
	statePath := filepath.Join(dir, preprocessorFile)
	stateData, err := os.ReadFile(statePath)
	if err != nil {
		return nil, &ArtifactError{Path: statePath, Msg: err.Error()}
	}
	state := &ml.PreprocessorState{}
	if err := json.Unmarshal(stateData, state); err != nil {
		return nil, &ArtifactError{Path: statePath, Msg: err.Error()}
	}
	if state.Version != ml.StateVersion {
		return nil, &ArtifactError{Path: statePath, Msg: fmt.Sprintf("state version %d, want %d", state.Version, ml.StateVersion)}
	}

	modelPath := filepath.Join(dir, modelFile)
	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, &ArtifactError{Path: modelPath, Msg: err.Error()}
	}
	var payload modelPayload
	if err := json.Unmarshal(modelData, &payload); err != nil {
		return nil, &ArtifactError{Path: modelPath, Msg: err.Error()}
	}
	if payload.Version != FormatVersion {
		return nil, &ArtifactError{Path: modelPath, Msg: fmt.Sprintf("artifact version %d, want %d", payload.Version, FormatVersion)}
	}
	if payload.Threshold < 0 || payload.Threshold > 1 {
		return nil, &ArtifactError{Path: modelPath, Msg: fmt.Sprintf("threshold out of range: %f", payload.Threshold)}
	}

	model, err := ml.NewClassifier(payload.Family, nil)
	if err != nil {
		return nil, &ArtifactError{Path: modelPath, Msg: err.Error()}
	}
	if err := model.UnmarshalParams(payload.Params); err != nil {
		return nil, &ArtifactError{Path: modelPath, Msg: err.Error()}
	}

	return &Bundle{State: state, Model: model, Meta: payload.Meta}, nil
}
