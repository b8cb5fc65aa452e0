package permission

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/stageflow/logging"
)

// Action enumerates the operations a permission can grant.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
)

// RoleReadonly is the built-in fallback role held by any agent with no
// explicit assignment: read on every resource, nothing else.
const RoleReadonly = "readonly"

// Permission grants one action on resources matching a glob pattern.
type Permission struct {
	// Resource is a glob pattern, see the package documentation for the
	// wildcard semantics.
	Resource string

	// Action the grant applies to.
	Action Action

	// Condition, when set, must additionally hold for the caller supplied
	// request metadata. Checks with nil metadata see an empty map.
	Condition func(metadata map[string]any) bool
}

// AccessRequest describes a single access decision.
type AccessRequest struct {
	Agent    string
	Resource string
	Action   Action
	Metadata map[string]any
}

// Options configures a Checker.
type Options struct {
	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// Checker decides whether agents may act on resources based on their
// assigned roles. The tables are read-mostly: define roles and assignments
// during setup, then check concurrently. Every method is individually safe
// for concurrent use.
type Checker struct {
	mu          sync.RWMutex
	roles       map[string][]Permission
	assignments map[string][]string
	patterns    map[string]*pattern
	opts        Options
}

// NewChecker constructs a Checker holding only the built-in readonly role.
func NewChecker(optFns ...func(o *Options)) *Checker {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Checker{
		assignments: make(map[string][]string),
		patterns:    make(map[string]*pattern),
		opts:        opts,
	}
	c.roles = map[string][]Permission{
		RoleReadonly: c.builtinReadonly(),
	}
	return c
}

func (c *Checker) builtinReadonly() []Permission {
	c.patterns["**"] = compilePattern("**")
	return []Permission{{Resource: "**", Action: ActionRead}}
}

// DefineRole defines or replaces a role. The permission slice is copied
// and every resource pattern is compiled up front so checks stay on the
// read lock.
func (c *Checker) DefineRole(name string, perms []Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := append([]Permission(nil), perms...)
	for _, perm := range copied {
		if _, ok := c.patterns[perm.Resource]; !ok {
			c.patterns[perm.Resource] = compilePattern(perm.Resource)
		}
	}
	c.roles[name] = copied

	c.opts.Logger.Debug("permission.role.defined", "role", name, "permissions", len(copied))
}

// AssignRole grants an agent a previously defined role. Assigning an
// undefined role is an error; assigning a held role again is a no-op.
func (c *Checker) AssignRole(agent, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.roles[role]; !ok {
		return fmt.Errorf("undefined role %q", role)
	}
	for _, held := range c.assignments[agent] {
		if held == role {
			return nil
		}
	}
	c.assignments[agent] = append(c.assignments[agent], role)

	c.opts.Logger.Debug("permission.role.assigned", "agent", agent, "role", role)

	return nil
}

// RevokeRole removes a role from an agent, reporting whether it was held.
// An agent whose last role is revoked falls back to readonly.
func (c *Checker) RevokeRole(agent, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	held := c.assignments[agent]
	for i, r := range held {
		if r == role {
			c.assignments[agent] = append(held[:i:i], held[i+1:]...)
			if len(c.assignments[agent]) == 0 {
				delete(c.assignments, agent)
			}
			c.opts.Logger.Debug("permission.role.revoked", "agent", agent, "role", role)
			return true
		}
	}
	return false
}

// RolesOf returns the roles the agent currently holds, sorted. Agents
// with no assignment report the built-in readonly role.
func (c *Checker) RolesOf(agent string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.rolesOfLocked(agent)
}

func (c *Checker) rolesOfLocked(agent string) []string {
	held := c.assignments[agent]
	if len(held) == 0 {
		return []string{RoleReadonly}
	}
	out := append([]string(nil), held...)
	sort.Strings(out)
	return out
}

// CheckAccess reports whether the request is allowed. The agent's
// effective permissions are the union over its roles; the first grant
// whose action, resource pattern and condition all match allows. No
// matching grant denies.
func (c *Checker) CheckAccess(req AccessRequest) bool {
	c.mu.RLock()
	allowed := c.checkLocked(req)
	c.mu.RUnlock()

	if !allowed {
		c.opts.Logger.Debug("permission.denied", "agent", req.Agent, "action", string(req.Action), "resource", req.Resource)
	}
	return allowed
}

func (c *Checker) checkLocked(req AccessRequest) bool {
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	for _, role := range c.rolesOfLocked(req.Agent) {
		for _, perm := range c.roles[role] {
			if perm.Action != req.Action {
				continue
			}
			if !c.matcherFor(perm.Resource).match(req.Resource) {
				continue
			}
			if perm.Condition != nil && !perm.Condition(metadata) {
				continue
			}
			return true
		}
	}
	return false
}

// matcherFor is called with at least the read lock held. Every pattern is
// compiled when its role is defined; the fallback compiles transiently
// rather than upgrading to the write lock.
func (c *Checker) matcherFor(resource string) *pattern {
	if p, ok := c.patterns[resource]; ok {
		return p
	}
	return compilePattern(resource)
}

// DenialReason explains a denial, naming the agent, its current roles and
// the attempted action and resource. It does not re-run the check; call
// it after CheckAccess has returned false.
func (c *Checker) DenialReason(req AccessRequest) string {
	roles := c.RolesOf(req.Agent)
	return fmt.Sprintf("agent %q (roles: %s) is not permitted to %s %q",
		req.Agent, strings.Join(roles, ", "), req.Action, req.Resource)
}

// AccessibleResources lists the resource patterns granting the action to
// the agent, deduplicated and sorted. Conditional grants are included
// since whether they apply depends on per request metadata.
func (c *Checker) AccessibleResources(agent string, action Action) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, role := range c.rolesOfLocked(agent) {
		for _, perm := range c.roles[role] {
			if perm.Action != action {
				continue
			}
			if _, dup := seen[perm.Resource]; dup {
				continue
			}
			seen[perm.Resource] = struct{}{}
			out = append(out, perm.Resource)
		}
	}
	sort.Strings(out)
	return out
}

// Reset drops every defined role and assignment, restoring the checker to
// its initial state with only the built-in readonly role. Role reloads
// that replace configuration wholesale call this first.
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.assignments = make(map[string][]string)
	c.patterns = make(map[string]*pattern)
	c.roles = map[string][]Permission{
		RoleReadonly: c.builtinReadonly(),
	}

	c.opts.Logger.Debug("permission.reset")
}
