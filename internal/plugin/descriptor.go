package plugin

// Mode selects the execution model of a plugin.
type Mode string

const (
	// ModeOneShot plugins produce one image per activation.
	ModeOneShot Mode = "oneshot"
	// ModeContinuous plugins run a refresh loop for as long as they are active.
	ModeContinuous Mode = "continuous"
)

// FieldType tags a settings schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldEnum    FieldType = "enum"
	FieldURL     FieldType = "url"
	FieldPath    FieldType = "path"
	FieldColor   FieldType = "color"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Option is one selectable value of an enum field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// ShowIf makes a field visible only when another field holds a given value.
// Hidden fields are not validated and not required.
type ShowIf struct {
	Field  string `yaml:"field" json:"field"`
	Equals any    `yaml:"equals" json:"equals"`
}

// FieldSpec describes one typed settings field, its validation constraints
// and its dashboard presentation.
type FieldSpec struct {
	Key      string    `yaml:"key" json:"key"`
	Type     FieldType `yaml:"type" json:"type"`
	Label    string    `yaml:"label" json:"label"`
	Required bool      `yaml:"required" json:"required"`
	Default  any       `yaml:"default,omitempty" json:"default,omitempty"`
	Min      *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern  string    `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Options  []Option  `yaml:"options,omitempty" json:"options,omitempty"`
	ShowIf   *ShowIf   `yaml:"show_if,omitempty" json:"show_if,omitempty"`
}

// Descriptor is the immutable metadata of a loaded plugin. The registry
// replaces descriptors wholesale on re-discovery; nothing mutates them.
type Descriptor struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Version     string      `yaml:"version" json:"version"`
	Author      string      `yaml:"author" json:"author"`
	Description string      `yaml:"description" json:"description"`
	Mode        Mode        `yaml:"mode" json:"mode"`
	Schema      []FieldSpec `yaml:"schema" json:"schema"`
}

// Field returns the schema field with the given key, if present.
func (d Descriptor) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Schema {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}
