package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShallowMergeYAML overlays the top-level sections of the YAML file at path
// onto target. A section present in the file replaces the target's section,
// and fields the file omits take their defaults. Unknown sections are ignored.
// On error target is left unchanged.
func ShallowMergeYAML(target *Config, path string) error {
	if target == nil {
		return errors.New("merge target is nil")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading overlay %s: %w", path, err)
	}

	var sections map[string]yaml.Node
	if err = yaml.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("parsing overlay %s: %w", path, err)
	}

	defaults := New()
	merged := *target
	for name, node := range sections {
		switch name {
		case "bulk":
			err = decodeSection(&node, &merged.Bulk, defaults.Bulk)
		case "logging":
			err = decodeSection(&node, &merged.Logging, defaults.Logging)
		case "history":
			err = decodeSection(&node, &merged.History, defaults.History)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("overlay section %q in %s: %w", name, path, err)
		}
	}

	*target = merged
	return nil
}

// decodeSection decodes node over a copy of defaults and stores it in dst.
// An empty section yields the defaults.
func decodeSection[S any](node *yaml.Node, dst *S, defaults S) error {
	section := defaults
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*dst = section
		return nil
	}
	if err := node.Decode(&section); err != nil {
		return err
	}
	*dst = section
	return nil
}
