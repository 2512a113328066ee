package task

import (
	"strings"
	"text/template"

	"github.com/1602/roco/pkg/types"
)

// Render expands Go template actions in command against a snapshot of the
// execution context, e.g. "cd {{ .deployTo }}". Missing keys are errors.
// Run and LocalRun never render; RunTemplate and LocalRunTemplate do.
func (s *Scope) Render(command string) (string, error) {
	if !strings.Contains(command, "{{") {
		return command, nil
	}
	tmpl, err := template.New("command").Option("missingkey=error").Parse(command)
	if err != nil {
		return "", &TaskError{Code: ErrCodeConfig, Message: "invalid command template", Task: s.taskName(), Cause: err}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, s.rt.State.Snapshot()); err != nil {
		return "", &TaskError{Code: ErrCodeConfig, Message: "cannot render command", Task: s.taskName(), Cause: err}
	}
	return b.String(), nil
}

// RunTemplate renders command and runs it like Run.
func (s *Scope) RunTemplate(command string, cb func([]types.HostResult)) error {
	rendered, err := s.Render(command)
	if err != nil {
		s.Fail(err)
		return err
	}
	return s.Run(rendered, cb)
}

// LocalRunTemplate renders command and runs it like LocalRun.
func (s *Scope) LocalRunTemplate(command string, cb func(output string)) error {
	rendered, err := s.Render(command)
	if err != nil {
		s.Fail(err)
		return err
	}
	return s.LocalRun(rendered, cb)
}
