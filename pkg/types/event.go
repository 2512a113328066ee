package types

// 事件名称
const (
	EventReady           = "ready"
	EventError           = "error"
	EventInfo            = "info"
	EventTaskDeclaration = "task declaration"
	EventTaskCall        = "task call"
	EventRun             = "run"
	EventRunStart        = "run start"
	EventRunOutput       = "run output"
	EventRunStop         = "run stop"
	EventRunEnd          = "run end"
	EventClose           = "close"
)

// Event is the payload delivered to bus listeners. Only the fields relevant
// to Name are set.
type Event struct {
	Name    string
	Task    *TaskInfo
	Run     *RunMeta
	Chunk   *OutputChunk
	Err     error
	Message string
}
