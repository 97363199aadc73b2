package model

import "strings"

// Ref is a reference to backend reference data. It is either unresolved
// (free text typed by the operator) or resolved to an option id together
// with the option's display name.
type Ref struct {
	Text string `json:"text"`
	ID   string `json:"id,omitempty"`
}

func Unresolved(text string) Ref {
	return Ref{Text: text}
}

func Resolved(id, name string) Ref {
	if id == "" {
		return Ref{Text: name}
	}
	return Ref{Text: name, ID: id}
}

func (r Ref) IsResolved() bool {
	return r.ID != ""
}

func (r Ref) IsEmpty() bool {
	return r.ID == "" && strings.TrimSpace(r.Text) == ""
}
