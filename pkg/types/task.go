package types

import "strings"

// NamespaceSeparator joins namespace segments and the task short name.
const NamespaceSeparator = ":"

// DefaultTaskName is the short name picked when a namespace is invoked directly.
const DefaultTaskName = "default"

// TaskInfo 任务描述
type TaskInfo struct {
	Namespace   string         `json:"namespace"`
	ShortName   string         `json:"short_name"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// JoinName joins non-empty segments with the namespace separator.
func JoinName(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, NamespaceSeparator)
}

// NewTaskInfo builds the descriptor of task shortName declared in namespace ns.
func NewTaskInfo(ns, shortName string) *TaskInfo {
	info := &TaskInfo{
		Namespace: ns,
		ShortName: shortName,
		Name:      JoinName(ns, shortName),
		Options:   make(map[string]any),
	}
	info.DisplayName = info.Name
	if shortName == DefaultTaskName && ns != "" {
		info.DisplayName = ns
	}
	return info
}
