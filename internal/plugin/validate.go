package plugin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError reports the first settings field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid setting %q: %s", e.Field, e.Reason)
}

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateSettings checks settings against the descriptor's schema. It stops
// at the first failing field and returns a *ValidationError naming it.
// Fields hidden by an unsatisfied show_if condition are skipped entirely.
func ValidateSettings(d Descriptor, settings map[string]any) error {
	for _, f := range d.Schema {
		if !fieldVisible(f, settings) {
			continue
		}
		val, present := settings[f.Key]
		if !present || val == nil {
			if f.Required && f.Default == nil {
				return &ValidationError{Field: f.Key, Reason: "required field is missing"}
			}
			continue
		}
		if err := validateValue(f, val); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults returns a copy of settings with schema defaults filled in for
// absent keys. The input map is not modified.
func ApplyDefaults(d Descriptor, settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings)+len(d.Schema))
	for k, v := range settings {
		out[k] = v
	}
	for _, f := range d.Schema {
		if _, ok := out[f.Key]; !ok && f.Default != nil {
			out[f.Key] = f.Default
		}
	}
	return out
}

func fieldVisible(f FieldSpec, settings map[string]any) bool {
	if f.ShowIf == nil {
		return true
	}
	got, ok := settings[f.ShowIf.Field]
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", f.ShowIf.Equals)
}

func validateValue(f FieldSpec, val any) error {
	switch f.Type {
	case FieldString, FieldPath:
		s, ok := val.(string)
		if !ok {
			return &ValidationError{Field: f.Key, Reason: "expected a string"}
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return &ValidationError{Field: f.Key, Reason: "must not be empty"}
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return &ValidationError{Field: f.Key, Reason: "schema pattern is invalid"}
			}
			if !re.MatchString(s) {
				return &ValidationError{Field: f.Key, Reason: fmt.Sprintf("does not match pattern %s", f.Pattern)}
			}
		}
	case FieldNumber:
		n, ok := toFloat(val)
		if !ok {
			return &ValidationError{Field: f.Key, Reason: "expected a number"}
		}
		if f.Min != nil && n < *f.Min {
			return &ValidationError{Field: f.Key, Reason: fmt.Sprintf("must be >= %v", *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return &ValidationError{Field: f.Key, Reason: fmt.Sprintf("must be <= %v", *f.Max)}
		}
	case FieldBoolean:
		if _, ok := val.(bool); !ok {
			return &ValidationError{Field: f.Key, Reason: "expected a boolean"}
		}
	case FieldEnum:
		s := fmt.Sprintf("%v", val)
		for _, opt := range f.Options {
			if opt.Value == s {
				return nil
			}
		}
		return &ValidationError{Field: f.Key, Reason: fmt.Sprintf("%q is not an allowed option", s)}
	case FieldURL:
		s, ok := val.(string)
		if !ok {
			return &ValidationError{Field: f.Key, Reason: "expected a URL string"}
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: f.Key, Reason: "not a valid absolute URL"}
		}
	case FieldColor:
		s, ok := val.(string)
		if !ok || !colorPattern.MatchString(s) {
			return &ValidationError{Field: f.Key, Reason: "expected a hex color like #rrggbb"}
		}
	case FieldArray:
		if _, ok := val.([]any); !ok {
			return &ValidationError{Field: f.Key, Reason: "expected an array"}
		}
	case FieldObject:
		if _, ok := val.(map[string]any); !ok {
			return &ValidationError{Field: f.Key, Reason: "expected an object"}
		}
	default:
		return &ValidationError{Field: f.Key, Reason: fmt.Sprintf("unknown field type %q", f.Type)}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
