package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stageflow/permission"
)

// ErrUnknownRole marks agent assignments referencing a role the file
// never defines.
var ErrUnknownRole = errors.New("unknown role")

// GrantSpec is one permission entry of a role in a roles file. A non-empty
// When map turns the grant conditional: every listed key must be present
// and equal in the request metadata.
type GrantSpec struct {
	Resource string         `yaml:"resource"`
	Action   string         `yaml:"action"`
	When     map[string]any `yaml:"when,omitempty"`
}

// RoleSet is the parsed form of a roles file: role definitions plus agent
// assignments.
type RoleSet struct {
	Roles  map[string][]GrantSpec `yaml:"roles"`
	Agents map[string][]string    `yaml:"agents,omitempty"`
}

// LoadRoles reads and validates a YAML roles file.
func LoadRoles(path string) (*RoleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	rs, err := ParseRoles(data)
	if err != nil {
		return nil, fmt.Errorf("roles file %s: %w", path, err)
	}

	return rs, nil
}

// ParseRoles parses YAML role data and validates it: grants need a
// resource and a known action, and assignments may only reference defined
// roles (the built-in readonly role counts as defined).
func ParseRoles(data []byte) (*RoleSet, error) {
	var rs RoleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse roles: %w", err)
	}

	for role, grants := range rs.Roles {
		for _, g := range grants {
			if g.Resource == "" {
				return nil, fmt.Errorf("role %q: grant with empty resource", role)
			}
			if _, err := parseAction(g.Action); err != nil {
				return nil, fmt.Errorf("role %q: resource %q: %w", role, g.Resource, err)
			}
		}
	}

	for agent, roles := range rs.Agents {
		for _, role := range roles {
			if role == permission.RoleReadonly {
				continue
			}
			if _, ok := rs.Roles[role]; !ok {
				return nil, fmt.Errorf("%w %q assigned to agent %q", ErrUnknownRole, role, agent)
			}
		}
	}

	return &rs, nil
}

// Apply replaces the checker's tables with this role set: existing roles
// and assignments are dropped, the built-in readonly fallback stays.
func (rs *RoleSet) Apply(checker *permission.Checker) error {
	checker.Reset()

	for role, grants := range rs.Roles {
		perms := make([]permission.Permission, 0, len(grants))
		for _, g := range grants {
			action, err := parseAction(g.Action)
			if err != nil {
				return fmt.Errorf("role %q: resource %q: %w", role, g.Resource, err)
			}
			perms = append(perms, permission.Permission{
				Resource:  g.Resource,
				Action:    action,
				Condition: whenPredicate(g.When),
			})
		}
		checker.DefineRole(role, perms)
	}

	for agent, roles := range rs.Agents {
		for _, role := range roles {
			if err := checker.AssignRole(agent, role); err != nil {
				return fmt.Errorf("agent %q: %w", agent, err)
			}
		}
	}

	return nil
}

// whenPredicate compiles a when map into a metadata predicate. Values are
// compared strictly, so a YAML integer does not match a float supplied at
// request time.
func whenPredicate(when map[string]any) func(map[string]any) bool {
	if len(when) == 0 {
		return nil
	}

	want := make(map[string]any, len(when))
	for k, v := range when {
		want[k] = v
	}

	return func(metadata map[string]any) bool {
		for k, v := range want {
			got, ok := metadata[k]
			if !ok || !reflect.DeepEqual(got, v) {
				return false
			}
		}
		return true
	}
}
