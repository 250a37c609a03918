package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Routes is the optional routing file. Intent entries are applied in file order
// on top of the built-in table; capability entries extend an agent's tags.
//
//	intents:
//	  - intent: security_audit
//	    agents: [qa_checker]
//	capabilities:
//	  devops: [kubernetes]
type Routes struct {
	Intents      []IntentRoute       `yaml:"intents"`
	Capabilities map[string][]string `yaml:"capabilities"`
}

type IntentRoute struct {
	Intent string   `yaml:"intent"`
	Agents []string `yaml:"agents"`
}

func LoadRoutes(path string) (*Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	return ParseRoutes(data)
}

func ParseRoutes(data []byte) (*Routes, error) {
	var routes Routes
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}

	for i, r := range routes.Intents {
		if r.Intent == "" {
			return nil, fmt.Errorf("routes: entry %d has no intent", i)
		}
		if len(r.Agents) == 0 {
			return nil, fmt.Errorf("routes: intent %q has no agents", r.Intent)
		}
	}

	return &routes, nil
}
