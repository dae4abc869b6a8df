package validation

import (
	"embed"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

//go:embed variables.toml
var dictionaryFS embed.FS

// Variable describes one measurable quantity and its plausible range.
// Values outside [Min, Max] are rejected as range errors.
type Variable struct {
	Name        string
	Units       string
	Description string
	Min         decimal.Decimal
	Max         decimal.Decimal
}

// Dictionary is the set of known trait variables, keyed by
// case-insensitive name.
type Dictionary struct {
	variables map[string]Variable
	names     []string
}

type dictionaryFile struct {
	Variables []struct {
		Name        string `toml:"name"`
		Units       string `toml:"units"`
		Description string `toml:"description"`
		Min         string `toml:"min"`
		Max         string `toml:"max"`
	} `toml:"variables"`
}

// LoadDictionary parses the embedded variable dictionary.
func LoadDictionary() (*Dictionary, error) {
	data, err := dictionaryFS.ReadFile("variables.toml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read variable dictionary")
	}
	return ParseDictionary(data)
}

// ParseDictionary decodes a TOML variable dictionary.
func ParseDictionary(data []byte) (*Dictionary, error) {
	var file dictionaryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse variable dictionary")
	}

	dict := &Dictionary{variables: make(map[string]Variable, len(file.Variables))}
	for _, v := range file.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return nil, errors.New("variable dictionary entry has empty name")
		}
		minVal, err := decimal.NewFromString(v.Min)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q has invalid min %q", v.Name, v.Min)
		}
		maxVal, err := decimal.NewFromString(v.Max)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q has invalid max %q", v.Name, v.Max)
		}
		if maxVal.LessThan(minVal) {
			return nil, errors.Errorf("variable %q has max below min", v.Name)
		}
		key := strings.ToLower(v.Name)
		if _, ok := dict.variables[key]; ok {
			return nil, errors.Errorf("variable %q declared twice", v.Name)
		}
		dict.variables[key] = Variable{
			Name:        v.Name,
			Units:       v.Units,
			Description: v.Description,
			Min:         minVal,
			Max:         maxVal,
		}
		dict.names = append(dict.names, v.Name)
	}
	return dict, nil
}

// Lookup finds a variable by case-insensitive name.
func (d *Dictionary) Lookup(name string) (Variable, bool) {
	v, ok := d.variables[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Names returns variable names in declaration order.
func (d *Dictionary) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// InRange checks value against the variable's bounds.
func (v Variable) InRange(value decimal.Decimal) bool {
	return value.GreaterThanOrEqual(v.Min) && value.LessThanOrEqual(v.Max)
}
