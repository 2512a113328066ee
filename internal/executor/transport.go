package executor

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/1602/roco/pkg/types"
)

// Transport builds the process invocation that runs command on host.
type Transport interface {
	Command(host types.HostSpec, command string) (name string, args []string)
}

// SSHTransport 通过 ssh 客户端在远程主机上执行命令
type SSHTransport struct {
	// Binary ssh 可执行文件，默认 "ssh"
	Binary string
	// Options 追加在主机之前的参数，例如 -o BatchMode=yes
	Options []string
}

// Command 构建 ssh 参数: [options..., -p PORT, address, command]
func (t *SSHTransport) Command(host types.HostSpec, command string) (string, []string) {
	binary := t.Binary
	if binary == "" {
		binary = "ssh"
	}
	args := make([]string, 0, len(t.Options)+4)
	args = append(args, t.Options...)
	if host.Port > 0 {
		args = append(args, "-p", strconv.Itoa(host.Port))
	}
	args = append(args, host.Address, command)
	return binary, args
}

// ShellTransport 在本机 shell 中为每台主机执行命令，主机名作为 $1 传入。
// 用于 localhost 部署与测试。
type ShellTransport struct {
	Shell     string
	ShellArgs []string
}

// Command 构建 shell 参数: [shellArgs..., command, "roco", host]
func (t *ShellTransport) Command(host types.HostSpec, command string) (string, []string) {
	shell, shellArgs := resolveShell(t.Shell, t.ShellArgs)
	args := make([]string, 0, len(shellArgs)+3)
	args = append(args, shellArgs...)
	args = append(args, command, "roco", host.String())
	return shell, args
}

// resolveShell 根据操作系统与 shell 名称确定可执行文件及参数
func resolveShell(shell string, shellArgs []string) (string, []string) {
	if shell == "" {
		if runtime.GOOS == "windows" {
			return "cmd", []string{"/C"}
		}
		return "/bin/sh", []string{"-c"}
	}
	if len(shellArgs) > 0 {
		return shell, shellArgs
	}

	// 常见 shell 的默认参数
	switch {
	case strings.Contains(shell, "powershell"):
		return shell, []string{"-Command"}
	case strings.Contains(shell, "cmd"):
		return shell, []string{"/C"}
	default:
		return shell, []string{"-c"}
	}
}
