package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskInfoDisplayName(t *testing.T) {
	def := NewTaskInfo("deploy", "default")
	assert.Equal(t, "deploy:default", def.Name)
	assert.Equal(t, "deploy", def.DisplayName)

	restart := NewTaskInfo("deploy", "restart")
	assert.Equal(t, "deploy:restart", restart.Name)
	assert.Equal(t, "deploy:restart", restart.DisplayName)

	nested := NewTaskInfo("app:db", "migrate")
	assert.Equal(t, "app:db:migrate", nested.Name)

	top := NewTaskInfo("", "default")
	assert.Equal(t, "default", top.Name)
	assert.Equal(t, "default", top.DisplayName)
}

func TestJoinNameSkipsEmpty(t *testing.T) {
	assert.Equal(t, "a:b", JoinName("", "a", "", "b"))
	assert.Equal(t, "", JoinName())
}
