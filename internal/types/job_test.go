package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullName(t *testing.T) {
	u := &UserProfile{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.FullName())

	assert.Equal(t, "Ada", (&UserProfile{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&UserProfile{LastName: "Lovelace"}).FullName())
	assert.Equal(t, "", (&UserProfile{}).FullName())
}

func TestAIAutomationEnabled(t *testing.T) {
	// Unset means enabled.
	assert.True(t, Preferences{}.AIAutomationEnabled())

	enabled := true
	assert.True(t, Preferences{AIAutomation: &enabled}.AIAutomationEnabled())

	disabled := false
	assert.False(t, Preferences{AIAutomation: &disabled}.AIAutomationEnabled())
}
