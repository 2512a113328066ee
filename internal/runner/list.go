package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/duke-git/lancet/v2/strutil"

	"github.com/1602/roco/pkg/types"
	"github.com/1602/roco/pkg/utils"
)

const listIndent = "  "

// taskGroup 同一命名空间下的任务
type taskGroup struct {
	Namespace string            `json:"namespace"`
	Tasks     []*types.TaskInfo `json:"tasks"`
}

// groups 按命名空间首次出现的顺序分组
func (r *Runner) groups() []taskGroup {
	var groups []taskGroup
	index := make(map[string]int)
	for _, info := range r.rt.Registry.Tasks() {
		i, ok := index[info.Namespace]
		if !ok {
			i = len(groups)
			index[info.Namespace] = i
			groups = append(groups, taskGroup{Namespace: info.Namespace})
		}
		groups[i].Tasks = append(groups[i].Tasks, info)
	}
	return groups
}

// List 按命名空间列出任务，显示名对齐到最长的一个，多行描述缩进对齐
func (r *Runner) List(w io.Writer, noDescriptions bool) {
	groups := r.groups()
	width := 0
	for _, info := range r.rt.Registry.Tasks() {
		width = max(width, len(info.DisplayName))
	}
	width += len(listIndent)
	descIndent := strings.Repeat(" ", width+1)

	for _, g := range groups {
		fmt.Fprintf(w, "\n%s\n", g.Namespace)
		for _, info := range g.Tasks {
			name := listIndent + info.DisplayName
			if noDescriptions || info.Description == "" {
				fmt.Fprintln(w, name)
				continue
			}
			lines := strings.Split(strings.TrimRight(info.Description, "\n"), "\n")
			lines = slice.Map(lines, func(i int, line string) string {
				if i == 0 {
					return line
				}
				return descIndent + line
			})
			fmt.Fprintf(w, "%s %s\n", strutil.PadEnd(name, width, " "), strings.Join(lines, "\n"))
		}
	}
}

// ListJSON 以 JSON 输出任务分组
func (r *Runner) ListJSON(w io.Writer) error {
	out, err := utils.ToJSONPretty(r.groups())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
