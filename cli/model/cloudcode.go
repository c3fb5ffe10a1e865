package model

type CloudCodeStatus string

const (
	CloudCodeStatusPending      CloudCodeStatus = "Pending"
	CloudCodeStatusRunning      CloudCodeStatus = "Running"
	CloudCodeStatusDeployFailed CloudCodeStatus = "DeployFailed"
)

// IsTerminal reports whether the controller will not move the cloud code
// out of this status on its own.
func (s CloudCodeStatus) IsTerminal() bool {
	return s == CloudCodeStatusRunning || s == CloudCodeStatusDeployFailed
}

func (s CloudCodeStatus) Known() bool {
	return s == CloudCodeStatusPending || s.IsTerminal()
}

type CloudCode struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     CloudCodeStatus `json:"status"`
	ArtifactID string          `json:"artifact_id,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

// CloudCodeConfig is one entry under cloud_code in skygear.yaml. It is
// sent to the controller as-is when the cloud code is created.
type CloudCodeConfig struct {
	Src         string            `json:"src" yaml:"src"`
	Environment string            `json:"environment,omitempty" yaml:"environment,omitempty"`
	Entry       string            `json:"entry,omitempty" yaml:"entry,omitempty"`
	Path        string            `json:"path,omitempty" yaml:"path,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}
