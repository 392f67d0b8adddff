package service

import (
	"fmt"
	"reflect"

	"github.com/Masterminds/semver/v3"
)

// DefaultMinVersion is used when an ID leaves MinVersion empty.
const DefaultMinVersion = ">=1.0.0"

// ID declares a dependency edge from a plugin to a host capability.
type ID struct {
	Type       reflect.Type
	Name       string
	MinVersion string
	Required   bool
}

// IDFor builds an ID for the interface type T.
func IDFor[T any](name, minVersion string, required bool) ID {
	if minVersion == "" {
		minVersion = DefaultMinVersion
	}
	return ID{Type: reflect.TypeFor[T](), Name: name, MinVersion: minVersion, Required: required}
}

func (id ID) String() string {
	req := "optional"
	if id.Required {
		req = "required"
	}
	return fmt.Sprintf("%s(%s %s, %s)", id.Name, id.Type, id.MinVersion, req)
}

// Constraint parses MinVersion.
func (id ID) Constraint() (*semver.Constraints, error) {
	v := id.MinVersion
	if v == "" {
		v = DefaultMinVersion
	}
	return semver.NewConstraint(v)
}

// Versioned is implemented by services that advertise a semantic version.
type Versioned interface {
	ServiceVersion() string
}

// Satisfies reports whether svc meets the ID's version constraint. Services
// that do not implement Versioned always satisfy it.
func (id ID) Satisfies(svc any) (bool, error) {
	vs, ok := svc.(Versioned)
	if !ok {
		return true, nil
	}
	c, err := id.Constraint()
	if err != nil {
		return false, fmt.Errorf("service %s: bad version constraint %q: %w", id.Name, id.MinVersion, err)
	}
	v, err := semver.NewVersion(vs.ServiceVersion())
	if err != nil {
		return false, fmt.Errorf("service %s: bad version %q: %w", id.Name, vs.ServiceVersion(), err)
	}
	return c.Check(v), nil
}
