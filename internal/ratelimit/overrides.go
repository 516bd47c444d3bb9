package ratelimit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidOverride = errors.New("invalid policy override")

// Override adjusts a built-in policy. Unset fields keep the built-in value.
type Override struct {
	Window     time.Duration `yaml:"window"`
	Quota      int64         `yaml:"quota"`
	GuestQuota int64         `yaml:"guestQuota"`
	Disabled   bool          `yaml:"disabled"`
}

// Overrides maps policy names to their adjustments.
type Overrides struct {
	Policies map[string]Override `yaml:"policies"`
}

// LoadOverrides reads a YAML override file. An empty path yields no overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read policy overrides: %w", err)
	}

	return ParseOverrides(data)
}

// ParseOverrides decodes YAML overrides, rejecting unknown fields.
func ParseOverrides(data []byte) (Overrides, error) {
	var o Overrides

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Overrides{}, fmt.Errorf("decode policy overrides: %w", err)
	}

	return o, nil
}

// Apply returns a copy of policies with the overrides applied. Overrides naming a
// policy that does not exist are an error.
func (o Overrides) Apply(policies []Policy) ([]Policy, error) {
	out := append([]Policy(nil), policies...)
	index := make(map[string]int, len(out))

	for i, p := range out {
		index[p.Name] = i
	}

	for name, ov := range o.Policies {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknownPolicy)
		}

		if ov.Window < 0 || ov.Quota < 0 || ov.GuestQuota < 0 {
			return nil, fmt.Errorf("%s: %w: negative value", name, ErrInvalidOverride)
		}

		if ov.GuestQuota > 0 && ov.Quota == 0 {
			return nil, fmt.Errorf("%s: %w: guestQuota requires quota", name, ErrInvalidOverride)
		}

		p := &out[i]

		if ov.Window > 0 {
			p.Window = ov.Window
		}

		switch {
		case ov.GuestQuota > 0:
			p.Quota = AuthQuota(ov.Quota, ov.GuestQuota)
		case ov.Quota > 0:
			p.Quota = FixedQuota(ov.Quota)
		}

		if ov.Disabled {
			p.Skip = func(*Request) bool { return true }
		}
	}

	return out, nil
}
