package domain

// TaskKind distinguishes generation tasks from animation tasks
type TaskKind string

const (
	TaskKindGeneration TaskKind = "generation"
	TaskKindAnimation  TaskKind = "animation"
)

// TaskStatus is the remote status of a task
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSuccess   TaskStatus = "success"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
	StatusUnknown   TaskStatus = "unknown"
)

// IsTerminal reports whether no further transition can occur from s
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusUnknown:
		return true
	}
	return false
}

// Output holds the artifact URLs of a completed task
type Output struct {
	Model         string
	PBRModel      string
	RenderedVideo string
	RenderedImage string
}

// Task represents a unit of work tracked by the remote service
type Task struct {
	ID       string
	Kind     TaskKind
	Status   TaskStatus
	Progress int
	Output   *Output
}

// TaskRecord is a journal entry for a submitted task
type TaskRecord struct {
	RunID     string
	TaskID    string
	Kind      TaskKind
	ImagePath string
	Status    TaskStatus
}

// DownloadResult describes the artifacts written for a task
type DownloadResult struct {
	Dir     string
	Files   []string
	Skipped []string
}
