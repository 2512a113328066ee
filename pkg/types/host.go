package types

import (
	"strconv"
	"strings"
)

// HostSpec 目标主机，端口为 0 表示使用传输层默认端口
type HostSpec struct {
	Raw     string `json:"raw"`
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
}

// String returns the spec as the user wrote it.
func (h HostSpec) String() string {
	if h.Raw != "" {
		return h.Raw
	}
	if h.Port > 0 {
		return h.Address + ":" + strconv.Itoa(h.Port)
	}
	return h.Address
}

// ParseHost parses "host", "host:port" or "[v6]:port". A bare IPv6 literal
// carries no port.
func ParseHost(raw string) HostSpec {
	raw = strings.TrimSpace(raw)
	spec := HostSpec{Raw: raw, Address: raw}

	i := strings.LastIndex(raw, ":")
	if i <= 0 || i == len(raw)-1 {
		return spec
	}
	host, portStr := raw[:i], raw[i+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return spec
	}
	switch {
	case strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]"):
		host = host[1 : len(host)-1]
	case strings.Contains(host, ":"):
		return spec
	}
	spec.Address = host
	spec.Port = port
	return spec
}

// ParseHosts parses every entry, skipping blanks.
func ParseHosts(raw []string) []HostSpec {
	specs := make([]HostSpec, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		specs = append(specs, ParseHost(r))
	}
	return specs
}
