package deploy

type Step string

const (
	StepArchive  Step = "archive"
	StepChecksum Step = "checksum"
	StepUpload   Step = "upload"
	StepArtifact Step = "artifact"
	StepDeploy   Step = "deploy"
	StepWait     Step = "wait"
)

// Steps lists the pipeline stages in the order they run.
var Steps = []Step{StepArchive, StepChecksum, StepUpload, StepArtifact, StepDeploy, StepWait}

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Event reports a stage changing state. Detail is a short human readable
// note, such as the checksum or the artifact ID.
type Event struct {
	Step   Step
	State  State
	Detail string
}

// Reporter receives pipeline events. It is called synchronously from the
// goroutine running the pipeline.
type Reporter func(Event)
