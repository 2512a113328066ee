package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		raw     string
		address string
		port    int
	}{
		{"a.example.com", "a.example.com", 0},
		{"b.example.com:2222", "b.example.com", 2222},
		{" c.example.com:22 ", "c.example.com", 22},
		{"deploy@d.example.com:2200", "deploy@d.example.com", 2200},
		{"[::1]:2022", "::1", 2022},
		{"fe80::1", "fe80::1", 0},
		{"e.example.com:", "e.example.com:", 0},
		{"f.example.com:http", "f.example.com:http", 0},
		{"g.example.com:70000", "g.example.com:70000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec := ParseHost(tt.raw)
			assert.Equal(t, tt.address, spec.Address)
			assert.Equal(t, tt.port, spec.Port)
		})
	}
}

func TestHostSpecString(t *testing.T) {
	assert.Equal(t, "b.example.com:2222", ParseHost("b.example.com:2222").String())
	assert.Equal(t, "h:22", HostSpec{Address: "h", Port: 22}.String())
	assert.Equal(t, "h", HostSpec{Address: "h"}.String())
}

func TestParseHostsSkipsBlanks(t *testing.T) {
	specs := ParseHosts([]string{"a", " ", "", "b:2"})
	assert.Len(t, specs, 2)
	assert.Equal(t, 2, specs[1].Port)
}
