// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/design-engine/pkg/types"
)

// definitionsFile is the keyed form of a definitions file. YAML and JSON
// files may also hold a bare list.
type definitionsFile struct {
	CustomModules []types.CustomModuleDefinition `json:"customModules" yaml:"customModules" toml:"customModules"`
}

// LoadDefinitionsFile reads custom module definitions from a .yaml, .yml,
// .toml, or .json file. Definitions are not validated here; Merge does that.
func LoadDefinitionsFile(path string) ([]types.CustomModuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions file: %w", err)
	}

	var (
		list    []types.CustomModuleDefinition
		keyed   definitionsFile
		decoder func([]byte, any) error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder = yaml.Unmarshal
	case ".json":
		decoder = json.Unmarshal
	case ".toml":
		if err := toml.Unmarshal(data, &keyed); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return keyed.CustomModules, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}

	if err := decoder(data, &list); err == nil {
		return list, nil
	}
	if err := decoder(data, &keyed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return keyed.CustomModules, nil
}
