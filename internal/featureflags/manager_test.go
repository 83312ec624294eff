package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a user")
}

func TestEnabledOrDefault(t *testing.T) {
	m := NewManager(StatusRequestEmail + "=off")

	assert.False(t, m.EnabledOrDefault(StatusRequestEmail, 1, true))
	assert.True(t, m.EnabledOrDefault(StatusRequestInApp, 1, true))

	var nilManager *Manager
	assert.True(t, nilManager.EnabledOrDefault(StatusRequestInApp, 1, true))
}

func TestDescribe(t *testing.T) {
	m := NewManager(" bad ,status_request_email=off, Status_Request_InApp = 100% ")

	email := m.Describe(StatusRequestEmail, 7, true)
	assert.Equal(t, State{Name: StatusRequestEmail, Rule: "off", Default: true, Enabled: false}, email)

	inApp := m.Describe(StatusRequestInApp, 7, true)
	assert.Equal(t, "100%", inApp.Rule)
	assert.True(t, inApp.Enabled)

	unset := NewManager("").Describe(StatusRequestEmail, 7, true)
	assert.Empty(t, unset.Rule)
	assert.True(t, unset.Enabled)

	var nilManager *Manager
	assert.False(t, nilManager.Describe("anything", 1, false).Enabled)
}
