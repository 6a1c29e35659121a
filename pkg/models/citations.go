package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// CitationStatus distinguishes "no evidence found" from "never computed".
type CitationStatus string

const (
	// CitationPending means no extraction has produced evidence for the field yet.
	CitationPending CitationStatus = "pending"
	// CitationNone means extraction ran and found no supporting evidence.
	CitationNone CitationStatus = "none"
	// CitationFound means Refs holds at least one source reference.
	CitationFound CitationStatus = "found"
)

// FieldCitations is the citation container for one term field.
type FieldCitations struct {
	Status CitationStatus `json:"status"`
	Refs   []string       `json:"refs"`
}

// NewFoundCitations returns a container holding refs, or a "none" container when refs is empty.
func NewFoundCitations(refs ...string) FieldCitations {
	if len(refs) == 0 {
		return FieldCitations{Status: CitationNone, Refs: []string{}}
	}
	return FieldCitations{Status: CitationFound, Refs: slices.Clone(refs)}
}

// NoCitations returns a container recording that extraction found no evidence.
func NoCitations() FieldCitations {
	return FieldCitations{Status: CitationNone, Refs: []string{}}
}

// PendingCitations returns a container for a field no extraction has touched.
func PendingCitations() FieldCitations {
	return FieldCitations{Status: CitationPending, Refs: []string{}}
}

// Clone returns a deep copy.
func (c FieldCitations) Clone() FieldCitations {
	refs := slices.Clone(c.Refs)
	if refs == nil {
		refs = []string{}
	}
	return FieldCitations{Status: c.Status, Refs: refs}
}

// Equal compares status and refs as an ordered sequence.
func (c FieldCitations) Equal(other FieldCitations) bool {
	return c.Status == other.Status && slices.Equal(c.Refs, other.Refs)
}

// UnmarshalJSON accepts the object form as well as the list-or-null form,
// where a list means found (or none when empty) and null means none.
func (c *FieldCitations) UnmarshalJSON(data []byte) error {
	parsed, err := parseFieldCitations(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseFieldCitations(data []byte) (FieldCitations, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return NoCitations(), nil
	case trimmed[0] == '[':
		var refs []string
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return FieldCitations{}, fmt.Errorf("citations must be a list of strings")
		}
		return NewFoundCitations(refs...), nil
	case trimmed[0] == '{':
		var raw struct {
			Status CitationStatus `json:"status"`
			Refs   []string       `json:"refs"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return FieldCitations{}, fmt.Errorf("invalid citation object")
		}
		switch raw.Status {
		case CitationPending, CitationNone:
			return FieldCitations{Status: raw.Status, Refs: []string{}}, nil
		case CitationFound:
			return NewFoundCitations(raw.Refs...), nil
		case "":
			return NewFoundCitations(raw.Refs...), nil
		default:
			return FieldCitations{}, fmt.Errorf("unknown citation status %q", raw.Status)
		}
	default:
		return FieldCitations{}, fmt.Errorf("citations must be a list, an object or null")
	}
}

// Citations maps a term field name to its citation container.
type Citations map[string]FieldCitations

// Get returns the container for field, treating a missing entry as pending.
func (c Citations) Get(field string) FieldCitations {
	if fc, ok := c[field]; ok {
		return fc
	}
	return PendingCitations()
}

// Clone returns a deep copy.
func (c Citations) Clone() Citations {
	if c == nil {
		return nil
	}
	out := make(Citations, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}
