package cli

import (
	"strings"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// enumFlag accepts one of a fixed set of values
type enumFlag struct {
	IsSet   bool
	Value   string
	name    string
	allowed []string
}

func newEnumFlag(name, value string, allowed ...string) *enumFlag {
	return &enumFlag{Value: value, name: name, allowed: allowed}
}

// String implements pflag.Value.
func (s *enumFlag) String() string {
	return s.Value
}

func (s *enumFlag) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if !lo.Contains(s.allowed, value) {
		return failure.New(InvalidFlag,
			failure.Messagef("%s must be one of %s", s.name, strings.Join(s.allowed, ", ")),
			failure.Context{"value": value},
		)
	}
	s.Value = value
	s.IsSet = true
	return nil
}

func (s *enumFlag) Type() string {
	return s.name
}

var _ pflag.Value = &enumFlag{}
