package coordinator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptConfig customizes the planner prompt without a code change,
// adapted from orchestration's PromptConfig/LoadFromEnv layering but read
// from a single YAML file (a Kubernetes ConfigMap mount in practice)
// rather than per-field JSON environment variables.
type PromptConfig struct {
	// Domain names the deployment's vertical (e.g. "healthcare", "retail")
	// and is appended to the prompt as a domain-awareness instruction.
	Domain string `yaml:"domain"`

	// CustomInstructions are appended to the planning prompt after the
	// action vocabulary and before the response-format section.
	CustomInstructions []string `yaml:"custom_instructions"`

	// ActionNotes maps an action type name to an extra constraint shown
	// next to that action in the "AVAILABLE ACTION TYPES" section, e.g.
	// {"click": "never click elements inside iframes from third-party origins"}.
	ActionNotes map[string]string `yaml:"action_notes"`
}

// LoadPromptConfig reads and validates a PromptConfig from a YAML file.
func LoadPromptConfig(path string) (*PromptConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt config %q: %w", path, err)
	}

	var cfg PromptConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing prompt config %q: %w", path, err)
	}
	for action := range cfg.ActionNotes {
		if !validActionType(action) {
			return nil, fmt.Errorf("prompt config %q: action_notes has unknown action type %q", path, action)
		}
	}
	return &cfg, nil
}

func validActionType(name string) bool {
	for _, t := range actionVocabulary {
		if t == name {
			return true
		}
	}
	return false
}
