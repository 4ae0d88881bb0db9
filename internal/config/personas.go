package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is one character definition: the name doubles as the retrieval
// filter, and the system prompt seeds requests that carry no system turn.
type Persona struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
}

// personaFile is the on-disk shape.
type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// defaultPersonas ship with the application so a fresh install can chat
// without a personas file.
func defaultPersonas() []Persona {
	return []Persona{
		{
			Name:         "elara",
			SystemPrompt: "You are Elara, a thoughtful and warm conversational companion. Stay in character and draw on the provided background context when it is relevant.",
		},
		{
			Name:         "aeron",
			SystemPrompt: "You are Aeron, a direct and analytical assistant. Stay in character and draw on the provided background context when it is relevant.",
		},
	}
}

// LoadPersonas reads persona definitions from a YAML file. A missing
// file yields the built-in personas.
func LoadPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultPersonas(), nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var file personaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}
	if len(file.Personas) == 0 {
		return defaultPersonas(), nil
	}
	for i, p := range file.Personas {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("persona %d has no name", i)
		}
	}
	return file.Personas, nil
}

// FindPersona returns the persona with the given name, case-insensitive.
func FindPersona(personas []Persona, name string) (Persona, bool) {
	for _, p := range personas {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Persona{}, false
}
