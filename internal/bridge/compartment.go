package bridge

import "strings"

// StripCompartmentIndex converts a compartment-indexed identifier to template
// form by dropping exactly one trailing character when, and only when, that
// character is the digit '0'. Compartment letters vary (c, e, p, ...), so no
// fixed-width suffix is assumed.
func StripCompartmentIndex(id string) string {
	if strings.HasSuffix(id, "0") {
		return id[:len(id)-1]
	}
	return id
}

// AddCompartmentIndex converts a template identifier to compartment-indexed
// form by appending index 0 after a trailing compartment letter. Identifiers
// that already end in a digit are returned unchanged.
func AddCompartmentIndex(id string) string {
	if id == "" {
		return id
	}
	last := id[len(id)-1]
	if (last >= 'a' && last <= 'z') || (last >= 'A' && last <= 'Z') {
		return id + "0"
	}
	return id
}

// Compartment returns the compartment letter of an identifier of the form
// "<base>_<letter>[index]", or "" when the identifier carries none.
func Compartment(id string) string {
	i := strings.LastIndexByte(id, '_')
	if i < 0 || i == len(id)-1 {
		return ""
	}
	suffix := strings.TrimRight(id[i+1:], "0123456789")
	if len(suffix) != 1 {
		return ""
	}
	return suffix
}
