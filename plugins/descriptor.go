package plugins

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/go-lynx/vectorium/service"
)

// Descriptor is the static metadata a plugin library exports. The host reads
// it before instantiating the plugin and never modifies it.
type Descriptor struct {
	Name     string
	Version  string
	Services []service.ID
	Security SecurityLevel
}

// Validate checks the name and parses the version.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if _, err := semver.NewVersion(d.Version); err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidDescriptor, d.Version, err)
	}
	for _, s := range d.Services {
		if s.Type == nil {
			return fmt.Errorf("%w: service %q has no type", ErrInvalidDescriptor, s.Name)
		}
		if _, err := s.Constraint(); err != nil {
			return fmt.Errorf("%w: service %q constraint %q: %v", ErrInvalidDescriptor, s.Name, s.MinVersion, err)
		}
	}
	return nil
}

// SemVer returns the parsed version.
func (d *Descriptor) SemVer() (*semver.Version, error) {
	return semver.NewVersion(d.Version)
}

// Required returns the required service ids.
func (d *Descriptor) Required() []service.ID {
	var out []service.ID
	for _, s := range d.Services {
		if s.Required {
			out = append(out, s)
		}
	}
	return out
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s@%s (%s, %d services)", d.Name, d.Version, d.Security, len(d.Services))
}
