// Package featureflags evaluates the FEATURE_FLAGS configuration string.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags consulted by the status-change workflow.
const (
	// StatusRequestEmail gates the email sent to super-admins for a new request.
	StatusRequestEmail = "status_request_email"
	// StatusRequestInApp gates the per-super-admin in-app notifications.
	StatusRequestInApp = "status_request_inapp"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "status_request_email=on,status_request_inapp=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for the given user.
// Values: on/true/1, off/false/0, or N% for a deterministic per-user rollout.
// Unknown flags are disabled.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// EnabledOrDefault is Enabled, except that a flag missing from the configuration
// evaluates to def.
func (m *Manager) EnabledOrDefault(name string, userID uint, def bool) bool {
	if m == nil {
		return def
	}
	if _, ok := m.flags[normalize(name)]; !ok {
		return def
	}
	return m.Enabled(name, userID)
}

// Workflow lists the flags the status-change workflow consults. Both default to on.
var Workflow = []string{StatusRequestEmail, StatusRequestInApp}

// State describes how one flag resolves for a user.
type State struct {
	Name string `json:"name"`
	// Rule is the configured value ("on", "off", "25%"); empty when unset.
	Rule    string `json:"rule"`
	Default bool   `json:"default"`
	Enabled bool   `json:"enabled"`
}

// Describe reports the configured rule for name and its result for userID,
// falling back to def when the flag is not configured.
func (m *Manager) Describe(name string, userID uint, def bool) State {
	st := State{Name: normalize(name), Default: def}
	if m != nil {
		st.Rule = m.flags[st.Name]
	}
	st.Enabled = m.EnabledOrDefault(name, userID, def)
	return st
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
