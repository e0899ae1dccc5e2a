package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// document mirrors the YAML layout. Both the flat keys of older mappings
// (url, submit_selector) and the nested forms (target, submit.selector) are
// accepted.
type document struct {
	URL            string     `yaml:"url"`
	Target         string     `yaml:"target"`
	SubmitSelector string     `yaml:"submit_selector"`
	Submit         *rawAction `yaml:"submit"`
	SuccessCheck   *rawCheck  `yaml:"success_check"`
	Fields         yaml.Node  `yaml:"fields"`
	Browser        string     `yaml:"browser"`
	Headless       bool       `yaml:"headless"`
	Driver         string     `yaml:"driver"`
}

type rawAction struct {
	Selector string `yaml:"selector"`
	Locator  string `yaml:"locator"`
}

func (a *rawAction) locator() string {
	if a == nil {
		return ""
	}
	if a.Locator != "" {
		return a.Locator
	}
	return a.Selector
}

type rawCheck struct {
	Selector     string `yaml:"selector"`
	Locator      string `yaml:"locator"`
	TextContains string `yaml:"text_contains"`
}

type rawField struct {
	Name       string         `yaml:"name"`
	Selector   string         `yaml:"selector"`
	Locator    string         `yaml:"locator"`
	Type       string         `yaml:"type"`
	Required   bool           `yaml:"required"`
	Default    *string        `yaml:"default"`
	Validators []rawValidator `yaml:"validators"`
}

// Load reads and parses a mapping file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Msg: "failed to read mapping", Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses a mapping document. Every error it returns is a *ConfigError.
func Parse(data []byte) (*Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Msg: "invalid YAML", Err: err}
	}

	cfg := &Config{
		Target:   firstNonEmpty(doc.Target, doc.URL),
		Browser:  doc.Browser,
		Headless: doc.Headless,
		Driver:   doc.Driver,
	}
	if cfg.Target == "" {
		return nil, configErr("url", "target url is required")
	}

	cfg.Submit.Locator = firstNonEmpty(doc.Submit.locator(), doc.SubmitSelector)
	if cfg.Submit.Locator == "" {
		return nil, configErr("submit_selector", "submit action locator is required")
	}

	if doc.SuccessCheck == nil {
		return nil, configErr("success_check", "success check is required")
	}
	cfg.SuccessCheck = SuccessCheck{
		Locator:      firstNonEmpty(doc.SuccessCheck.Locator, doc.SuccessCheck.Selector),
		TextContains: doc.SuccessCheck.TextContains,
	}
	if cfg.SuccessCheck.Locator == "" {
		return nil, configErr("success_check.selector", "success check locator is required")
	}

	fields, err := parseFields(&doc.Fields)
	if err != nil {
		return nil, err
	}
	cfg.Fields = fields
	return cfg, nil
}

// parseFields accepts either a mapping keyed by field name or a sequence of
// entries carrying a name key. Declaration order is preserved in both cases.
func parseFields(node *yaml.Node) ([]FieldSpec, error) {
	type entry struct {
		name string
		node *yaml.Node
	}
	var entries []entry

	switch node.Kind {
	case 0:
		return nil, configErr("fields", "at least one field is required")
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			entries = append(entries, entry{name: node.Content[i].Value, node: node.Content[i+1]})
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			var named struct {
				Name string `yaml:"name"`
			}
			if err := item.Decode(&named); err != nil {
				return nil, &ConfigError{Field: fmt.Sprintf("fields[%d]", i), Msg: "invalid field", Err: err}
			}
			entries = append(entries, entry{name: named.Name, node: item})
		}
	default:
		return nil, configErr("fields", "must be a mapping or a list")
	}

	if len(entries) == 0 {
		return nil, configErr("fields", "at least one field is required")
	}

	seen := make(map[string]bool, len(entries))
	specs := make([]FieldSpec, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.name)
		if name == "" {
			return nil, configErr("fields", "field name is required")
		}
		if seen[name] {
			return nil, configErr("fields."+name, "duplicate field name")
		}
		seen[name] = true

		spec, err := parseField(name, e.node)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseField(name string, node *yaml.Node) (FieldSpec, error) {
	path := "fields." + name

	var raw rawField
	if err := node.Decode(&raw); err != nil {
		return FieldSpec{}, &ConfigError{Field: path, Msg: "invalid field", Err: err}
	}

	spec := FieldSpec{
		Name:     name,
		Locator:  firstNonEmpty(raw.Locator, raw.Selector),
		Type:     normalizeType(raw.Type),
		Required: raw.Required,
		Default:  raw.Default,
	}
	if spec.Locator == "" {
		return FieldSpec{}, configErr(path, "locator is required")
	}
	if !spec.Type.Valid() {
		return FieldSpec{}, configErr(path, "unsupported field type %q (must be text, select, or checkbox)", raw.Type)
	}

	for i, rv := range raw.Validators {
		vs, err := compileValidator(name, rv)
		if err != nil {
			return FieldSpec{}, &ConfigError{Field: fmt.Sprintf("%s.validators[%d]", path, i), Msg: "invalid validator", Err: err}
		}
		spec.Validators = append(spec.Validators, vs)
	}
	return spec, nil
}

// normalizeType maps the document spelling to a FieldType. "input" is the
// older name for text fields.
func normalizeType(t string) FieldType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "input", "text":
		return FieldText
	default:
		return FieldType(strings.ToLower(strings.TrimSpace(t)))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
