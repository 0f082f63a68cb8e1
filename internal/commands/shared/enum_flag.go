package shared

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// EnumFlag is a string flag restricted to a fixed set of values.
type EnumFlag struct {
	target  *string
	allowed []string
}

var _ pflag.Value = (*EnumFlag)(nil)

// NewEnumFlag binds target to a flag accepting only allowed. Matching is
// case-insensitive and stores the lower-case value. An empty target is
// allowed and means "not set".
func NewEnumFlag(target *string, allowed ...string) *EnumFlag {
	return &EnumFlag{target: target, allowed: allowed}
}

func (e *EnumFlag) String() string {
	if e.target == nil {
		return ""
	}
	return *e.target
}

func (e *EnumFlag) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	if !slices.Contains(e.allowed, v) {
		return fmt.Errorf("must be one of %s", strings.Join(e.allowed, ", "))
	}
	*e.target = v
	return nil
}

func (e *EnumFlag) Type() string { return "string" }
