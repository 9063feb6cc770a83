package definition

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader resolves the raw definition resource for an (entityType, variant)
// pair. Implementations return an error wrapping ErrNotFound when no
// resource exists for the pair; the Store handles the default-variant
// fallback on top of that.
type Loader interface {
	Load(entityType, variant string) (*Definition, error)
}

// definition file names probed in order within a machine directory.
var resourceNames = []string{"definition.yaml", "definition.yml", "definition.json"}

// FileLoader reads definition documents from the conventional layout
//
//	{root}/{entityType}/state_machine/{entityType}_{variant}/definition.(yaml|yml|json)
//
// JSON documents parse through the YAML decoder, so both formats share one
// code path.
type FileLoader struct {
	root string
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{root: dir}
}

func (l *FileLoader) Load(entityType, variant string) (*Definition, error) {
	dir := filepath.Join(l.root, entityType, "state_machine", fmt.Sprintf("%s_%s", entityType, variant))
	for _, name := range resourceNames {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("definition: read %s/%s: %w", entityType, variant, err)
		}
		return Parse(raw, entityType, variant)
	}
	return nil, &NotFoundError{EntityType: entityType, Variant: variant}
}

// document is the wire shape of a definition resource.
type document struct {
	States      []string        `yaml:"states"`
	Transitions []docTransition `yaml:"transitions"`
}

type docTransition struct {
	Trigger    string         `yaml:"trigger"`
	Source     stringList     `yaml:"source"`
	Dest       string         `yaml:"dest"`
	Conditions []string       `yaml:"conditions"`
	Meta       map[string]any `yaml:"meta"`
}

// stringList accepts either a scalar or a sequence of strings, since the
// document format allows `source: draft` as well as `source: [a, b]`.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = []string{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("source must be a string or list of strings")
	}
}

// Parse decodes and validates a raw definition document.
func Parse(raw []byte, entityType, variant string) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &InvalidError{EntityType: entityType, Variant: variant, Detail: err.Error()}
	}

	def := &Definition{
		EntityType:  entityType,
		Variant:     variant,
		States:      doc.States,
		Transitions: make([]Transition, 0, len(doc.Transitions)),
	}
	for _, dt := range doc.Transitions {
		def.Transitions = append(def.Transitions, Transition{
			Trigger:    dt.Trigger,
			Sources:    dt.Source,
			Dest:       dt.Dest,
			Conditions: dt.Conditions,
			Meta:       parseMeta(dt.Meta),
		})
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func parseMeta(raw map[string]any) Meta {
	meta := Meta{Raw: raw}
	if raw == nil {
		return meta
	}
	if v, ok := raw["api_trigger"].(bool); ok {
		meta.APITrigger = v
	}
	if perms, ok := raw["permissions"].([]any); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				meta.Permissions = append(meta.Permissions, s)
			}
		}
	}
	return meta
}
