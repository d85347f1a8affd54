package schema

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML schema definition from path and validates it
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML schema definition and validates it
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// columnYAML mirrors Column but keeps the raw default node, because yaml.v3
// skips custom unmarshalers for null values and `default: null` must survive.
type columnYAML struct {
	Name          string    `yaml:"name"`
	Type          string    `yaml:"type"`
	Unsigned      bool      `yaml:"unsigned"`
	NotNull       bool      `yaml:"not_null"`
	AutoIncrement bool      `yaml:"auto_increment"`
	Unique        bool      `yaml:"unique"`
	PrimaryKey    bool      `yaml:"primary_key"`
	Default       yaml.Node `yaml:"default"`
}

// UnmarshalYAML implements yaml.Unmarshaler
func (c *Column) UnmarshalYAML(value *yaml.Node) error {
	var raw columnYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	def, err := decodeDefault(&raw.Default)
	if err != nil {
		return fmt.Errorf("column %s: %w", raw.Name, err)
	}

	*c = Column{
		Name:          raw.Name,
		Type:          raw.Type,
		Unsigned:      raw.Unsigned,
		NotNull:       raw.NotNull,
		AutoIncrement: raw.AutoIncrement,
		Unique:        raw.Unique,
		PrimaryKey:    raw.PrimaryKey,
		Default:       def,
	}
	return nil
}

func decodeDefault(n *yaml.Node) (Default, error) {
	if n.Kind == 0 {
		return Default{}, nil
	}
	if n.Kind != yaml.ScalarNode {
		return Default{}, fmt.Errorf("default must be a scalar, got %s", n.Tag)
	}

	switch n.ShortTag() {
	case "!!null":
		return NullDefault(), nil
	case "!!str":
		return StringDefault(n.Value), nil
	case "!!int", "!!float":
		return Default{Kind: DefaultNumber, Value: n.Value}, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return Default{}, fmt.Errorf("invalid boolean default %q", n.Value)
		}
		return BoolDefault(b), nil
	default:
		return Default{}, fmt.Errorf("unsupported default type %s", n.ShortTag())
	}
}
