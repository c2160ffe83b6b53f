package models

import "fmt"

func errInvalidEnum(field, value string) error {
	return fmt.Errorf("invalid value %q for enum field %s", value, field)
}

func errInvariant(msg string) error {
	return fmt.Errorf("invariant violated: %s", msg)
}
