// Package hostconfig parses and validates the Host Configuration document
// (spec.md §3).
package hostconfig

import (
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/microsoft/trident/internal/types"
)

// ParseFile reads and unmarshals the Host Configuration YAML document named
// by path. yaml.v3 is used directly (not via mapstructure) so the custom
// UefiFallbackMode.UnmarshalYAML synonym-acceptance runs.
func ParseFile(fs types.FS, path string) (*types.HostConfiguration, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.KindConfig, "hostconfig", err)
	}
	var hc types.HostConfiguration
	if err := yaml.Unmarshal(data, &hc); err != nil {
		return nil, types.NewError(types.KindConfig, "hostconfig", err)
	}
	return &hc, nil
}

// ApplyOverrides merges a flat map of CLI/viper-sourced overrides (e.g.
// --image-url) onto an already-parsed Host Configuration via the same
// mapstructure-decode pattern that lets flags, env vars, and config files
// populate one struct.
func ApplyOverrides(hc *types.HostConfiguration, overrides map[string]interface{}) error {
	if len(overrides) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           hc,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return types.NewError(types.KindInternal, "hostconfig", err)
	}
	if err := dec.Decode(overrides); err != nil {
		return types.NewError(types.KindConfig, "hostconfig", err)
	}
	return nil
}
