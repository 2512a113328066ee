package task

import (
	"github.com/1602/roco/pkg/types"
)

// namespaceStack is the path of namespaces currently being declared.
type namespaceStack []string

func (s *namespaceStack) push(name string) {
	*s = append(*s, name)
}

func (s *namespaceStack) pop() {
	if n := len(*s); n > 0 {
		*s = (*s)[:n-1]
	}
}

func (s namespaceStack) path() string {
	return types.JoinName(s...)
}

func (s namespaceStack) qualify(name string) string {
	return types.JoinName(s.path(), name)
}

// Namespace 在命名空间 name 下执行声明体 body。命名空间可以任意嵌套，
// body 返回错误或 panic 时同样会出栈。
func (r *Registry) Namespace(name string, body func() error) error {
	if name == "" {
		return NewConfigError("namespace name should be a non-empty string")
	}
	if body == nil {
		return NewConfigError(`namespace "` + name + `" has no body`)
	}

	r.mu.Lock()
	r.ns.push(name)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.ns.pop()
		r.mu.Unlock()
	}()

	return body()
}

// CurrentNamespace 返回当前声明所在的命名空间路径
func (r *Registry) CurrentNamespace() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ns.path()
}
