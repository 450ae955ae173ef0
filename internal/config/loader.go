package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// enginesFile is the on-disk shape of an engine override file:
//
//	{"engines": {"imagemagick": {"command": "magick"}}}
type enginesFile struct {
	Engines map[string]EngineConfig `json:"engines"`
}

// LoadEngines merges engine overrides into cfg.Engines. Order of precedence
// (highest to lowest): explicit file, project file, global file, defaults.
// Missing global/project files are not errors; a missing explicit file is.
// Malformed JSON or an unknown engine name returns an error.
func LoadEngines(cfg *Config, globalPath, projectPath, explicitPath string) error {
	if globalPath != "" {
		if err := mergeEnginesFile(&cfg.Engines, globalPath, false); err != nil {
			return fmt.Errorf("loading global engines: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeEnginesFile(&cfg.Engines, projectPath, false); err != nil {
			return fmt.Errorf("loading project engines: %w", err)
		}
	}
	if explicitPath != "" {
		if err := mergeEnginesFile(&cfg.Engines, explicitPath, true); err != nil {
			return fmt.Errorf("loading engines: %w", err)
		}
	}
	return nil
}

// DefaultEnginePaths returns the conventional override locations:
// ~/.config/pngcrunch/engines.json and ./.pngcrunch.json.
func DefaultEnginePaths() (global, project string) {
	project = ".pngcrunch.json"
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", project
	}
	return filepath.Join(dir, "pngcrunch", "engines.json"), project
}

func mergeEnginesFile(set *EngineSet, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded enginesFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for name, e := range loaded.Engines {
		var dst *EngineConfig
		switch name {
		case "imagemagick":
			dst = &set.ImageMagick
		case "optipng":
			dst = &set.OptiPNG
		case "advpng":
			dst = &set.AdvPNG
		case "oxipng":
			dst = &set.OxiPNG
		default:
			return fmt.Errorf("%s: unknown engine %q", path, name)
		}
		if e.Command != "" {
			dst.Command = e.Command
		}
		if e.Args != nil {
			dst.Args = append([]string(nil), e.Args...)
		}
	}
	return nil
}
