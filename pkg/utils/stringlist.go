package utils

import "strings"

// StringList is a flag.Value collecting repeated string flags.
type StringList []string

func (a *StringList) String() string {
	return strings.Join(*a, ",")
}

func (a *StringList) Set(value string) error {
	*a = append(*a, value)
	return nil
}
