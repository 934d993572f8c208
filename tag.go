package rowparse

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Base Error types for member tag decoding
var (
	ErrEmptyMemberName         = errors.New("member name cannot be empty")
	ErrUnallowedTagModifier    = errors.New("member tag modifier is not allowed")
	ErrDuplicateMemberName     = errors.New("member name is used by more than one field")
	ErrUnsupportedStructTarget = errors.New("struct parser requires a struct type")
)

// DefaultMemberTag is the struct tag read by StructParserFactory.
const DefaultMemberTag = "json"

// Modifiers understood in member tags.
const (
	RequiredTagModifier  = "required"
	OmitEmptyTagModifier = "omitempty"
)

// MemberTag is the decoded form of a member tag.
//
// Tag grammar:
//
//	tag:
//	    <tag_name>:"<member_name>,<modifier_list>"
//	member_name:
//	    <string> | "" (use the Go field name) | "-" (skip the field)
//	modifier_list:
//	    [modifier]^* // Delimited with ","
//	modifier:
//	    required | omitempty
//
// Members are optional unless marked required. omitempty is accepted for
// compatibility with encoding/json tags and has no further effect.
type MemberTag struct {
	Name     string
	Required bool
	Skip     bool
}

// DecodeMemberTag decodes the member tag of field under tagName.
func DecodeMemberTag(field reflect.StructField, tagName string) (MemberTag, error) {
	tag, ok := field.Tag.Lookup(tagName)
	if !ok {
		return MemberTag{Name: field.Name}, nil
	}
	if tag == "-" {
		return MemberTag{Skip: true}, nil
	}

	parts := strings.Split(tag, ",")
	mt := MemberTag{Name: strings.TrimSpace(parts[0])}
	if mt.Name == "" {
		mt.Name = field.Name
	}

	for _, part := range parts[1:] {
		switch strings.TrimSpace(part) {
		case RequiredTagModifier:
			mt.Required = true
		case OmitEmptyTagModifier, "":
		default:
			return MemberTag{}, fmt.Errorf("%w: %q on field %s", ErrUnallowedTagModifier, part, field.Name)
		}
	}

	if mt.Name == "" {
		return MemberTag{}, fmt.Errorf("%w: field %s", ErrEmptyMemberName, field.Name)
	}
	return mt, nil
}
