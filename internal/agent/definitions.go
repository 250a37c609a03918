package agent

import (
	"embed"
	"fmt"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/tools"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Definition describes a built-in specialist.
type Definition struct {
	Name         string
	Capabilities []string
	Tools        []string
}

var Definitions = []Definition{
	{
		Name:         "coder",
		Capabilities: []string{"code_generation", "code_modification", "debugging", "refactoring"},
		Tools:        tools.Group(tools.FileTools, []string{tools.RunCommand}, tools.MemoryTools),
	},
	{
		Name:         "test_writer",
		Capabilities: []string{"test_generation", "test_improvement", "test_coverage"},
		Tools:        tools.Group(tools.FileTools, []string{tools.RunCommand}),
	},
	{
		Name:         "requirement_analyzer",
		Capabilities: []string{"requirement_analysis", "jira", "confluence", "specification"},
		Tools:        tools.Group(tools.ReadOnlyFileTools, tools.MemoryTools),
	},
	{
		Name:         "qa_checker",
		Capabilities: []string{"code_review", "quality_check", "linting", "security"},
		Tools:        tools.Group(tools.ReadOnlyFileTools, []string{tools.RunCommand}),
	},
	{
		Name:         "docs_agent",
		Capabilities: []string{"documentation", "slack_summary", "user_guides", "api_docs"},
		Tools:        tools.Group(tools.FileTools, []string{tools.CurrentTime}),
	},
	{
		Name:         "devops",
		Capabilities: []string{"ci_cd", "deployment", "release_management", "github_actions", "docker", "infrastructure"},
		Tools:        tools.Group(tools.FileTools, []string{tools.RunCommand, tools.SystemStatus, tools.CurrentTime, tools.UsageSummary}),
	},
}

func loadPrompt(name string) (string, error) {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("prompt for %s: %w", name, err)
	}
	return string(data), nil
}

// Build creates the specialist for def, granting it the tools from registry
// it is allowed to use.
func Build(def Definition, model llm.LLM, registry *tools.Registry) (*Specialist, error) {
	prompt, err := loadPrompt(def.Name)
	if err != nil {
		return nil, err
	}
	return NewSpecialist(def.Name, prompt, model, registry.Subset(def.Tools...)), nil
}
