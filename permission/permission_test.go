package permission

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func developerPerms() []Permission {
	return []Permission{
		{Resource: "src/**", Action: ActionRead},
		{Resource: "src/**", Action: ActionWrite},
		{Resource: "docs/**", Action: ActionRead},
	}
}

func TestChecker_ReadonlyFallback(t *testing.T) {
	c := NewChecker()

	assert.True(t, c.CheckAccess(AccessRequest{Agent: "drifter", Resource: "src/main.go", Action: ActionRead}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "drifter", Resource: "deep/nested/path/file", Action: ActionRead}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "drifter", Resource: "src/main.go", Action: ActionWrite}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "drifter", Resource: "src/main.go", Action: ActionDelete}))

	assert.Equal(t, []string{RoleReadonly}, c.RolesOf("drifter"))
}

func TestChecker_DeveloperRole(t *testing.T) {
	c := NewChecker()
	c.DefineRole("developer", developerPerms())
	require.NoError(t, c.AssignRole("dev-agent", "developer"))

	assert.True(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: "src/main.go", Action: ActionWrite}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: "src/pkg/util.go", Action: ActionWrite}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: "docs/readme.md", Action: ActionWrite}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: "src/main.go", Action: ActionDelete}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: "config/app.yaml", Action: ActionDelete}))
}

func TestChecker_AssignedRoleReplacesReadonly(t *testing.T) {
	c := NewChecker()
	c.DefineRole("writer", []Permission{{Resource: "out/**", Action: ActionWrite}})
	require.NoError(t, c.AssignRole("scribe", "writer"))

	// Assignment replaces the fallback entirely; reads are no longer
	// implied.
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "scribe", Resource: "out/report.txt", Action: ActionRead}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "scribe", Resource: "out/report.txt", Action: ActionWrite}))
}

func TestChecker_ConditionalDelete(t *testing.T) {
	c := NewChecker()
	c.DefineRole("operator", []Permission{
		{Resource: "**", Action: ActionRead},
		{
			Resource: ".env",
			Action:   ActionDelete,
			Condition: func(metadata map[string]any) bool {
				confirmed, _ := metadata["confirmed"].(bool)
				return confirmed
			},
		},
	})
	require.NoError(t, c.AssignRole("ops", "operator"))

	req := AccessRequest{Agent: "ops", Resource: ".env", Action: ActionDelete}

	assert.False(t, c.CheckAccess(req), "no metadata denies")

	req.Metadata = map[string]any{"confirmed": false}
	assert.False(t, c.CheckAccess(req), "unconfirmed denies")

	req.Metadata = map[string]any{"confirmed": "yes"}
	assert.False(t, c.CheckAccess(req), "non boolean confirmation denies")

	req.Metadata = map[string]any{"confirmed": true}
	assert.True(t, c.CheckAccess(req))
}

func TestChecker_AdminCatchAll(t *testing.T) {
	c := NewChecker()
	c.DefineRole("admin", []Permission{
		{Resource: "**", Action: ActionRead},
		{Resource: "**", Action: ActionWrite},
		{Resource: "**", Action: ActionDelete},
		{Resource: "**", Action: ActionExecute},
	})
	require.NoError(t, c.AssignRole("root", "admin"))

	for _, action := range []Action{ActionRead, ActionWrite, ActionDelete, ActionExecute} {
		assert.True(t, c.CheckAccess(AccessRequest{Agent: "root", Resource: "anything/at/all", Action: action}), string(action))
	}
}

func TestChecker_UnionOfRoles(t *testing.T) {
	c := NewChecker()
	c.DefineRole("reader", []Permission{{Resource: "**", Action: ActionRead}})
	c.DefineRole("deployer", []Permission{{Resource: "deploy/**", Action: ActionExecute}})
	require.NoError(t, c.AssignRole("ci", "reader"))
	require.NoError(t, c.AssignRole("ci", "deployer"))

	assert.True(t, c.CheckAccess(AccessRequest{Agent: "ci", Resource: "src/main.go", Action: ActionRead}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "ci", Resource: "deploy/run.sh", Action: ActionExecute}))
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "ci", Resource: "src/main.go", Action: ActionExecute}))

	assert.Equal(t, []string{"deployer", "reader"}, c.RolesOf("ci"))
}

func TestChecker_AssignUndefinedRole(t *testing.T) {
	c := NewChecker()

	err := c.AssignRole("agent", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, []string{RoleReadonly}, c.RolesOf("agent"))
}

func TestChecker_AssignIsIdempotent(t *testing.T) {
	c := NewChecker()
	c.DefineRole("writer", []Permission{{Resource: "**", Action: ActionWrite}})

	require.NoError(t, c.AssignRole("agent", "writer"))
	require.NoError(t, c.AssignRole("agent", "writer"))

	assert.Equal(t, []string{"writer"}, c.RolesOf("agent"))
}

func TestChecker_RevokeRole(t *testing.T) {
	c := NewChecker()
	c.DefineRole("writer", []Permission{{Resource: "**", Action: ActionWrite}})
	require.NoError(t, c.AssignRole("agent", "writer"))

	assert.True(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "x", Action: ActionWrite}))

	assert.True(t, c.RevokeRole("agent", "writer"))
	assert.False(t, c.RevokeRole("agent", "writer"), "second revoke reports not held")

	// Back on the readonly fallback.
	assert.False(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "x", Action: ActionWrite}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "x", Action: ActionRead}))
}

func TestChecker_DefineRoleReplaces(t *testing.T) {
	c := NewChecker()
	c.DefineRole("shifting", []Permission{{Resource: "a/**", Action: ActionWrite}})
	require.NoError(t, c.AssignRole("agent", "shifting"))

	assert.True(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "a/file", Action: ActionWrite}))

	c.DefineRole("shifting", []Permission{{Resource: "b/**", Action: ActionWrite}})

	assert.False(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "a/file", Action: ActionWrite}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "b/file", Action: ActionWrite}))
}

func TestChecker_DenialReason(t *testing.T) {
	c := NewChecker()
	c.DefineRole("developer", developerPerms())
	require.NoError(t, c.AssignRole("dev-agent", "developer"))

	reason := c.DenialReason(AccessRequest{Agent: "dev-agent", Resource: "secrets/key.pem", Action: ActionDelete})

	assert.Contains(t, reason, "dev-agent")
	assert.Contains(t, reason, "developer")
	assert.Contains(t, reason, "delete")
	assert.Contains(t, reason, "secrets/key.pem")
}

func TestChecker_AccessibleResources(t *testing.T) {
	c := NewChecker()
	c.DefineRole("reader", []Permission{
		{Resource: "docs/**", Action: ActionRead},
		{Resource: "src/**", Action: ActionRead},
	})
	c.DefineRole("auditor", []Permission{
		{Resource: "docs/**", Action: ActionRead},
		{Resource: "logs/**", Action: ActionRead},
		{Resource: "logs/**", Action: ActionDelete},
	})
	require.NoError(t, c.AssignRole("agent", "reader"))
	require.NoError(t, c.AssignRole("agent", "auditor"))

	assert.Equal(t, []string{"docs/**", "logs/**", "src/**"}, c.AccessibleResources("agent", ActionRead))
	assert.Equal(t, []string{"logs/**"}, c.AccessibleResources("agent", ActionDelete))
	assert.Empty(t, c.AccessibleResources("agent", ActionWrite))

	assert.Equal(t, []string{"**"}, c.AccessibleResources("stranger", ActionRead))
}

func TestChecker_Reset(t *testing.T) {
	c := NewChecker()
	c.DefineRole("writer", []Permission{{Resource: "**", Action: ActionWrite}})
	require.NoError(t, c.AssignRole("agent", "writer"))

	c.Reset()

	assert.False(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "x", Action: ActionWrite}))
	assert.True(t, c.CheckAccess(AccessRequest{Agent: "agent", Resource: "x", Action: ActionRead}))
	assert.Error(t, c.AssignRole("agent", "writer"), "defined roles are gone after reset")
}

func TestChecker_ConcurrentChecks(t *testing.T) {
	c := NewChecker()
	c.DefineRole("developer", developerPerms())
	require.NoError(t, c.AssignRole("dev-agent", "developer"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resource := fmt.Sprintf("src/pkg%d/file.go", i)
			assert.True(t, c.CheckAccess(AccessRequest{Agent: "dev-agent", Resource: resource, Action: ActionWrite}))
			c.RolesOf("dev-agent")
			c.AccessibleResources("dev-agent", ActionRead)
		}(i)
	}
	wg.Wait()
}
