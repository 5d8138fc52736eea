package lecture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tiroq/lectern/internal/subtitle"
)

// LoadScript reads a lecture from a YAML file:
//
//	title: My lecture
//	language: en
//	text: optional full text for the single-request strategy
//	segments:
//	  - First line.
//	  - Second line.
func LoadScript(path string) (subtitle.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return subtitle.Script{}, fmt.Errorf("read script: %w", err)
	}
	var s subtitle.Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return subtitle.Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return subtitle.Script{}, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

// Resolve returns the script at path, or the built-in lecture when path is
// empty.
func Resolve(path string) (subtitle.Script, error) {
	if path == "" {
		return Freud(), nil
	}
	return LoadScript(path)
}
