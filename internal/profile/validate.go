package profile

import (
	"errors"
	"fmt"
)

const maxNameLen = 64

// ErrInvalidName is returned for a profile name that cannot be used as a
// directory under the base dir.
var ErrInvalidName = errors.New("invalid profile name")

// ValidateName accepts 1 to 64 characters from a-z, 0-9, '-' and '_',
// starting with a letter or digit.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidName, name, maxNameLen)
	case !isAlnum(name[0]):
		return fmt.Errorf("%w %q: must start with a letter or digit", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; !isAlnum(c) && c != '-' && c != '_' {
			return fmt.Errorf("%w %q: unexpected %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
