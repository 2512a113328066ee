package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultEnvironment, c.Environment())
	assert.Equal(t, "", c.Application())
	assert.True(t, c.Has(KeyApplication))
	assert.Nil(t, c.Hosts())
}

func TestSetOverwritesEnsureDoesNot(t *testing.T) {
	c := New()
	c.Ensure("branch", "master")
	c.Ensure("branch", "develop")
	assert.Equal(t, "master", c.GetString("branch"))

	c.Set("branch", "release")
	assert.Equal(t, "release", c.GetString("branch"))

	c.Ensure(KeyApplication, "ignored")
	assert.Equal(t, "", c.Application())
}

func TestLazyValueIsMemoized(t *testing.T) {
	c := New()
	var calls atomic.Int32
	c.Set("release", Lazy(func() any {
		calls.Add(1)
		return "20260101"
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "20260101", c.GetString("release"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestPlainFuncIsLazy(t *testing.T) {
	c := New()
	c.Set("n", func() any { return 42 })
	v, ok := c.Get("n")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, "42", c.GetString("n"))
}

func TestLazyMayReadOtherKeys(t *testing.T) {
	c := New()
	c.Set("root", "/var/www")
	c.Set("current", Lazy(func() any { return c.GetString("root") + "/current" }))
	assert.Equal(t, "/var/www/current", c.GetString("current"))
}

func TestHostsNormalization(t *testing.T) {
	c := New()

	c.Set(KeyHosts, "a.example.com")
	assert.Equal(t, []string{"a.example.com"}, c.Hosts())

	c.Set(KeyHosts, "a.example.com, b.example.com:2222,")
	assert.Equal(t, []string{"a.example.com", "b.example.com:2222"}, c.Hosts())

	c.Set(KeyHosts, []any{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, c.Hosts())

	c.Set(KeyHosts, []string{" z "})
	assert.Equal(t, []string{"z"}, c.Hosts())
}

func TestEnvironmentAliases(t *testing.T) {
	c := New()
	c.SetEnvironment("production")
	assert.Equal(t, "production", c.Environment())
	assert.Equal(t, "production", c.GetString(KeyEnv))
}

func TestSnapshotEvaluatesLazy(t *testing.T) {
	c := New()
	c.Set("a", Lazy(func() any { return "b" }))
	snap := c.Snapshot()
	assert.Equal(t, "b", snap["a"])
	assert.Contains(t, c.Keys(), "a")
}
