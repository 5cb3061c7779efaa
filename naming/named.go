// Package naming gives reconcilers, rings and tracers hierarchical names.
package naming

import (
	"strconv"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name of the object.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase validates the name and creates a NamedBase.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)

	return NamedBase{name: name}
}

// NameMustBeValid panics if the name does not follow the naming convention.
//
// A name is a dot-separated list of elements, such as "Client.Windowed". Every
// element must be non-empty, start with a capital letter and must not contain
// '_', '-', or quotes. Elements in a series carry square-bracket indices, as in
// "Client[2].Manual".
func NameMustBeValid(name string) {
	for _, elem := range strings.Split(name, ".") {
		if reason := elemProblem(elem); reason != "" {
			panic("name " + strconv.Quote(name) + " is not valid: " + reason)
		}
	}
}

func elemProblem(elem string) string {
	base, indices, found := strings.Cut(elem, "[")
	if found {
		if !strings.HasSuffix(indices, "]") {
			return "brackets must match"
		}

		for _, index := range strings.Split(strings.TrimSuffix(indices, "]"), "][") {
			if _, err := strconv.Atoi(index); err != nil {
				return "index must be an integer"
			}
		}
	}

	if base == "" {
		return "element must not be empty"
	}

	if strings.ContainsAny(base, "_-\"'[]") {
		return "element must not contain _, -, quotes or stray brackets"
	}

	if base[0] < 'A' || base[0] > 'Z' {
		return "element must start with a capital letter"
	}

	return ""
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name for the index-th element of a series.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
