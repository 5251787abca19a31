// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agentcrew/copilot-agents/groupchat"
)

// Tool sets a [MemberSpec] can ask for.
const (
	ToolFiles      = "files"
	ToolRunCommand = "run_command"
	ToolRetrieval  = "retrieval"
	ToolMCP        = "mcp"
)

// Team keys of the built-in catalogue.
const (
	TeamSoftwareDev = "softwaredev"
	TeamWebDev      = "webdev"
	TeamAnalytics   = "analytics"
	TeamResearch    = "research"
)

//go:embed teams.yaml
var teamsYAML []byte

// MemberSpec describes one agent of a team.
type MemberSpec struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Instructions string   `yaml:"instructions"`
	Tools        []string `yaml:"tools"`
}

// TeamSpec describes a team and how its chat picks speakers.
type TeamSpec struct {
	Background string       `yaml:"background"`
	Selection  string       `yaml:"selection"`
	Members    []MemberSpec `yaml:"members"`
}

// Member returns the member called name.
func (t TeamSpec) Member(name string) (MemberSpec, bool) {
	i := slices.IndexFunc(t.Members, func(m MemberSpec) bool { return strings.EqualFold(m.Name, name) })
	if i < 0 {
		return MemberSpec{}, false
	}
	return t.Members[i], true
}

// Catalogue maps team keys to team specs.
type Catalogue map[string]TeamSpec

// ParseCatalogue decodes a YAML team catalogue and validates it.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("workflow: parse catalogue: %w", err)
	}
	for key, team := range c {
		if len(team.Members) == 0 {
			return nil, fmt.Errorf("workflow: team %q has no members", key)
		}
		if _, err := groupchat.ParseSelection(team.Selection); err != nil {
			return nil, fmt.Errorf("workflow: team %q: %w", key, err)
		}
		for _, m := range team.Members {
			if m.Name == "" {
				return nil, fmt.Errorf("workflow: team %q has an unnamed member", key)
			}
			for _, tool := range m.Tools {
				switch tool {
				case ToolFiles, ToolRunCommand, ToolRetrieval, ToolMCP:
				default:
					return nil, fmt.Errorf("workflow: team %q member %s: unknown tool set %q", key, m.Name, tool)
				}
			}
		}
	}
	return c, nil
}

var builtin = sync.OnceValues(func() (Catalogue, error) { return ParseCatalogue(teamsYAML) })

// Builtin returns the embedded catalogue. It panics if the embedded file is
// invalid.
func Builtin() Catalogue {
	c, err := builtin()
	if err != nil {
		panic(err)
	}
	return c
}

// Keys returns the team keys in sorted order.
func (c Catalogue) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
