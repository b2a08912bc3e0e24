// Package contents parses the user-defined type descriptors carried inside
// extended signatures and enforces the naming rules that keep a type name
// safe to relay verbatim to a human-facing signing prompt.
package contents

import (
	"fmt"
	"strings"
)

// Characters that must never appear in a contents type name. A name carrying
// any of these could escape the textual framing a wallet renders around
// "what you are signing" and turn a structured prompt into an opaque hash.
const forbiddenNameChars = ", )\x00"

// Descriptor is a contents description split into its parts, decided once at
// decode time. Explicit reports that the description carried a trailing name
// suffix after the type definition instead of leading with the type name.
type Descriptor struct {
	Name     string
	Type     string
	Explicit bool
}

// ParseName extracts and validates the type name preceding the first "(" of
// contentsType.
func ParseName(contentsType string) (string, error) {
	i := strings.IndexByte(contentsType, '(')
	if i < 0 {
		return "", fmt.Errorf("contents type %q has no argument list", contentsType)
	}
	name := contentsType[:i]
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateName rejects unsafe type names: empty names, names starting with a
// lowercase ASCII letter or "(", and names containing a comma, space, closing
// parenthesis, or NUL.
func ValidateName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("contents type name is empty")
	}
	first := name[0]
	if (first >= 'a' && first <= 'z') || first == '(' {
		return fmt.Errorf("contents type name %q starts with forbidden character %q", name, first)
	}
	if i := strings.IndexAny(name, forbiddenNameChars); i >= 0 {
		return fmt.Errorf("contents type name %q contains forbidden character %q", name, name[i])
	}
	return nil
}

// ParseDescriptor splits a contents description into name and type. A
// description ending in ")" is the contents type itself and the name is read
// off its front; otherwise the bytes after the last ")" are an explicit name
// suffix, used when type-set serialization does not lead with the signed type.
func ParseDescriptor(description string) (Descriptor, error) {
	if len(description) == 0 {
		return Descriptor{}, fmt.Errorf("contents description is empty")
	}

	if description[len(description)-1] == ')' {
		name, err := ParseName(description)
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Name: name, Type: description}, nil
	}

	cut := strings.LastIndexByte(description, ')')
	if cut < 0 {
		return Descriptor{}, fmt.Errorf("contents description %q has no type definition", description)
	}
	name := description[cut+1:]
	if err := ValidateName(name); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Name: name, Type: description[:cut+1], Explicit: true}, nil
}
