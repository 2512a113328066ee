package script

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/1602/roco/internal/task"
)

// entry is one key of a mapping, in document order.
type entry[T any] struct {
	Key   string
	Value T
}

// ordered decodes a YAML mapping keeping the key order, so tasks are
// declared in the order they are written.
type ordered[T any] []entry[T]

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		*o = append(*o, entry[T]{Key: node.Content[i].Value, Value: v})
	}
	return nil
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// Rocofile 声明式 rocofile
type Rocofile struct {
	Set        ordered[any]          `yaml:"set"`
	Ensure     ordered[any]          `yaml:"ensure"`
	Include    stringList            `yaml:"include"`
	Namespaces ordered[NamespaceDef] `yaml:"namespaces"`
	Tasks      ordered[TaskDef]      `yaml:"tasks"`
	Before     ordered[stringList]   `yaml:"before"`
	After      ordered[stringList]   `yaml:"after"`
}

// NamespaceDef 命名空间声明，可以嵌套
type NamespaceDef struct {
	Tasks      ordered[TaskDef]      `yaml:"tasks"`
	Namespaces ordered[NamespaceDef] `yaml:"namespaces"`
}

// TaskDef 任务声明。依次执行 local 命令、run 命令与 steps 引用的任务。
type TaskDef struct {
	Desc     string         `yaml:"desc"`
	Options  map[string]any `yaml:"options"`
	Local    stringList     `yaml:"local"`
	Run      stringList     `yaml:"run"`
	Steps    stringList     `yaml:"steps"`
	Template bool           `yaml:"template"` // 为 true 时命令先按执行上下文渲染 ({{ .key }})
}

// Action 构建任务动作
func (d TaskDef) Action() task.Func {
	localRun, run := (*task.Scope).LocalRun, (*task.Scope).Run
	if d.Template {
		localRun, run = (*task.Scope).LocalRunTemplate, (*task.Scope).RunTemplate
	}
	return func(s *task.Scope, done task.Done) {
		for _, cmd := range d.Local {
			if err := localRun(s, cmd, nil); err != nil {
				return
			}
		}
		for _, cmd := range d.Run {
			if err := run(s, cmd, nil); err != nil {
				return
			}
		}
		if len(d.Steps) > 0 {
			steps := make([]task.Step, len(d.Steps))
			for i, ref := range d.Steps {
				steps[i] = task.Ref(ref)
			}
			if err := s.Sequence(steps...); err != nil {
				return
			}
		}
		done()
	}
}

// LoadYAML 解析并执行声明式 rocofile：先设置变量与引入文件，
// 再声明命名空间、顶层任务与钩子。
func (e *Engine) LoadYAML(data []byte, path string) error {
	var rf Rocofile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	st := e.rt.State
	for _, kv := range rf.Set {
		st.Set(kv.Key, kv.Value)
	}
	for _, kv := range rf.Ensure {
		st.Ensure(kv.Key, kv.Value)
	}
	for _, inc := range rf.Include {
		if err := e.LoadFile(e.resolve(inc)); err != nil {
			return err
		}
	}

	if err := e.declareNamespaces(rf.Namespaces); err != nil {
		return err
	}
	if err := e.declareTasks(rf.Tasks); err != nil {
		return err
	}

	reg := e.rt.Registry
	for _, kv := range rf.Before {
		for _, ref := range kv.Value {
			if err := reg.Before(kv.Key, task.Ref(ref)); err != nil {
				return err
			}
		}
	}
	for _, kv := range rf.After {
		for _, ref := range kv.Value {
			if err := reg.After(kv.Key, task.Ref(ref)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) declareNamespaces(namespaces ordered[NamespaceDef]) error {
	reg := e.rt.Registry
	for _, ns := range namespaces {
		def := ns.Value
		err := reg.Namespace(ns.Key, func() error {
			if err := e.declareTasks(def.Tasks); err != nil {
				return err
			}
			return e.declareNamespaces(def.Namespaces)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) declareTasks(tasks ordered[TaskDef]) error {
	reg := e.rt.Registry
	for _, t := range tasks {
		if t.Value.Desc != "" {
			reg.Desc(t.Value.Desc)
		}
		if _, err := reg.Task(t.Key, t.Value.Options, t.Value.Action()); err != nil {
			return err
		}
	}
	return nil
}
