package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DeploymentStatus is the lifecycle of one deployment.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentSucceeded  DeploymentStatus = "success"
	DeploymentFailed     DeploymentStatus = "failed"
	DeploymentRolledBack DeploymentStatus = "rolled_back"
)

// ServiceStatus is the lifecycle of one service within a deployment.
type ServiceStatus string

const (
	ServicePending    ServiceStatus = "pending"
	ServiceInProgress ServiceStatus = "in_progress"
	ServiceSucceeded  ServiceStatus = "success"
	ServiceFailed     ServiceStatus = "failed"
	ServiceRolledBack ServiceStatus = "rolled_back"
)

// LogEntry is one structured event in the deployment log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Service string    `json:"service,omitempty"`
	Phase   int       `json:"phase,omitempty"`
}

// DeploymentState is the on-disk record of one deployment. Any process
// implementing the same layout can read it back.
type DeploymentState struct {
	DeploymentID string           `json:"deployment_id"`
	Environment  string           `json:"environment"`
	Status       DeploymentStatus `json:"status"`

	Phases   [][]string               `json:"phases"`
	Services map[string]ServiceStatus `json:"services"`

	Log []LogEntry `json:"log"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitzero"`

	FailureReason string `json:"failure_reason,omitempty"`
}

// NewDeploymentState initialises the record with every service pending.
func NewDeploymentState(id, environment string, phases [][]string) *DeploymentState {
	services := make(map[string]ServiceStatus)
	for _, phase := range phases {
		for _, name := range phase {
			services[name] = ServicePending
		}
	}
	return &DeploymentState{
		DeploymentID: id,
		Environment:  environment,
		Status:       DeploymentPending,
		Phases:       phases,
		Services:     services,
		StartTime:    time.Now().UTC(),
	}
}

// Append records a log entry and returns the total entry count, which the
// coordinator uses for periodic journal writes.
func (s *DeploymentState) Append(level, message, service string, phase int) int {
	s.Log = append(s.Log, LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: message,
		Service: service,
		Phase:   phase,
	})
	return len(s.Log)
}

// StatePath returns the journal location for a deployment id.
func StatePath(stateDir, deploymentID string) string {
	return filepath.Join(stateDir, deploymentID+".json")
}

// Save writes the full state document atomically (temp file + rename).
func (s *DeploymentState) Save(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployment state: %w", err)
	}

	path := StatePath(stateDir, s.DeploymentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write deployment state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit deployment state: %w", err)
	}
	return nil
}

// Load reads a journaled deployment state back from disk.
func Load(stateDir, deploymentID string) (*DeploymentState, error) {
	data, err := os.ReadFile(StatePath(stateDir, deploymentID))
	if err != nil {
		return nil, fmt.Errorf("read deployment state: %w", err)
	}
	var st DeploymentState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse deployment state: %w", err)
	}
	return &st, nil
}
