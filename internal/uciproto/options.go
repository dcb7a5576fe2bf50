package uciproto

import (
	"fmt"
	"strconv"
	"strings"
)

// Option is one UCI-configurable value.
type Option struct {
	Name     string
	Type     string // "spin", "check", "string", "button"
	Default  string
	Min, Max int

	value    string
	OnChange func(o *Option)
}

// Options is an ordered registry of UCI options. Registration order is the
// order they are announced in.
type Options struct {
	names []string
	byKey map[string]*Option
}

// NewOptions returns an empty registry.
func NewOptions() *Options {
	return &Options{byKey: make(map[string]*Option)}
}

func key(name string) string { return strings.ToLower(name) }

// Add registers an option. The default becomes the current value.
func (os *Options) Add(o Option) *Option {
	o.value = o.Default
	os.names = append(os.names, o.Name)
	os.byKey[key(o.Name)] = &o
	return &o
}

// AddSpin registers an integer option.
func (os *Options) AddSpin(name string, def, min, max int, onChange func(o *Option)) *Option {
	return os.Add(Option{
		Name:     name,
		Type:     "spin",
		Default:  strconv.Itoa(def),
		Min:      min,
		Max:      max,
		OnChange: onChange,
	})
}

// AddCheck registers a boolean option.
func (os *Options) AddCheck(name string, def bool, onChange func(o *Option)) *Option {
	return os.Add(Option{
		Name:     name,
		Type:     "check",
		Default:  strconv.FormatBool(def),
		OnChange: onChange,
	})
}

// AddString registers a string option.
func (os *Options) AddString(name, def string, onChange func(o *Option)) *Option {
	return os.Add(Option{Name: name, Type: "string", Default: def, OnChange: onChange})
}

// Set updates an option by name (case-insensitive, as the protocol allows)
// and fires its change hook.
func (os *Options) Set(name, value string) error {
	o, ok := os.byKey[key(name)]
	if !ok {
		return fmt.Errorf("no such option: %s", name)
	}
	if o.Type == "spin" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("option %s wants an integer: %w", o.Name, err)
		}
		if n < o.Min {
			n = o.Min
		}
		if n > o.Max {
			n = o.Max
		}
		value = strconv.Itoa(n)
	}
	o.value = value
	if o.OnChange != nil {
		o.OnChange(o)
	}
	return nil
}

// Int returns the option's integer value (0 if absent or non-numeric).
// Satisfies the pool's OptionSource.
func (os *Options) Int(name string) int {
	o, ok := os.byKey[key(name)]
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(o.value)
	return n
}

// Bool returns the option's boolean value.
func (os *Options) Bool(name string) bool {
	o, ok := os.byKey[key(name)]
	if !ok {
		return false
	}
	return o.value == "true"
}

// String returns the option's raw value.
func (os *Options) String(name string) string {
	o, ok := os.byKey[key(name)]
	if !ok {
		return ""
	}
	return o.value
}

// Announce renders the "option name ..." lines for the uci command.
func (os *Options) Announce() []string {
	lines := make([]string, 0, len(os.names))
	for _, name := range os.names {
		o := os.byKey[key(name)]
		switch o.Type {
		case "spin":
			lines = append(lines, fmt.Sprintf(
				"option name %s type spin default %s min %d max %d",
				o.Name, o.Default, o.Min, o.Max))
		case "check":
			lines = append(lines, fmt.Sprintf(
				"option name %s type check default %s", o.Name, o.Default))
		case "button":
			lines = append(lines, fmt.Sprintf("option name %s type button", o.Name))
		default:
			def := o.Default
			if def == "" {
				def = "<empty>"
			}
			lines = append(lines, fmt.Sprintf(
				"option name %s type string default %s", o.Name, def))
		}
	}
	return lines
}
