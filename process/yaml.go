package process

import "gopkg.in/yaml.v3"

// EncodeStructureYAML serializes a Structure to the authoring format an
// (out-of-scope) CLI reads and writes process definitions in.
func EncodeStructureYAML(s Structure) ([]byte, error) {
	return yaml.Marshal(s)
}

// DecodeStructureYAML parses a Structure from its YAML authoring format.
func DecodeStructureYAML(data []byte) (Structure, error) {
	var s Structure
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Structure{}, err
	}
	return s, nil
}
