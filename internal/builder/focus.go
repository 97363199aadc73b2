package builder

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayout []byte

// Control ids that are not plain draft fields.
const (
	ControlLineAdd    = "pestLine.add"
	ControlLineCancel = "pestLine.cancel"
	ControlAttachment = "attachment"
	ControlSubmit     = "submit"
)

type ControlKind string

const (
	KindText      ControlKind = "text"
	KindMultiline ControlKind = "multiline"
	KindCombobox  ControlKind = "combobox"
	KindDate      ControlKind = "date"
	KindTime      ControlKind = "time"
	KindButton    ControlKind = "button"
)

type Control struct {
	ID      string      `yaml:"id" json:"id"`
	Kind    ControlKind `yaml:"kind" json:"kind"`
	Section string      `yaml:"-" json:"section"`
	Mounted *bool       `yaml:"mounted" json:"-"`
}

// MountedByDefault reports the mount state before the caller reports any.
func (c Control) MountedByDefault() bool {
	return c.Mounted == nil || *c.Mounted
}

type layoutFile struct {
	Terminal string `yaml:"terminal"`
	Sections []struct {
		Name     string    `yaml:"name"`
		Controls []Control `yaml:"controls"`
	} `yaml:"sections"`
}

// Graph is the flat keyboard traversal order across every section.
type Graph struct {
	controls []Control
	index    map[string]int
	terminal Control
}

// ParseLayout builds a graph from a YAML layout.
func ParseLayout(data []byte) (*Graph, error) {
	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if file.Terminal == "" {
		return nil, fmt.Errorf("parse layout: terminal control is required")
	}

	g := &Graph{
		index:    make(map[string]int),
		terminal: Control{ID: file.Terminal, Kind: KindButton},
	}
	for _, section := range file.Sections {
		for _, control := range section.Controls {
			if control.ID == "" {
				return nil, fmt.Errorf("parse layout: section %q has a control without id", section.Name)
			}
			if _, dup := g.index[control.ID]; dup {
				return nil, fmt.Errorf("parse layout: duplicate control %q", control.ID)
			}
			if control.Kind == "" {
				control.Kind = KindText
			}
			control.Section = section.Name
			g.index[control.ID] = len(g.controls)
			g.controls = append(g.controls, control)
		}
	}
	return g, nil
}

// DefaultGraph returns the graph of the embedded builder layout.
func DefaultGraph() *Graph {
	g, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) Controls() []Control {
	out := make([]Control, len(g.controls))
	copy(out, g.controls)
	return out
}

func (g *Graph) Control(id string) (Control, bool) {
	if id == g.terminal.ID {
		return g.terminal, true
	}
	pos, ok := g.index[id]
	if !ok {
		return Control{}, false
	}
	return g.controls[pos], true
}

func (g *Graph) Terminal() string {
	return g.terminal.ID
}

// MountedFunc resolves a symbolic control id to whether its live control
// is currently mounted.
type MountedFunc func(id string) bool

// Target is where focus goes. OpenOptions is set for combobox controls,
// whose option list must be shown as soon as they gain focus.
type Target struct {
	Control     string      `json:"control"`
	Kind        ControlKind `json:"kind"`
	OpenOptions bool        `json:"openOptions"`
}

// Next returns the first mounted control after current in render order,
// or the terminal control when none is left. An unknown current starts
// the scan at the top.
func (g *Graph) Next(current string, mounted MountedFunc) Target {
	start := 0
	if pos, ok := g.index[current]; ok {
		start = pos + 1
	} else if current == g.terminal.ID {
		return g.terminalTarget()
	}

	for i := start; i < len(g.controls); i++ {
		control := g.controls[i]
		if !mounted(control.ID) {
			continue
		}
		return Target{
			Control:     control.ID,
			Kind:        control.Kind,
			OpenOptions: control.Kind == KindCombobox,
		}
	}
	return g.terminalTarget()
}

// Nearest returns id itself when mounted, otherwise the closest mounted
// control before it. It returns "" when nothing before it is mounted.
func (g *Graph) Nearest(id string, mounted MountedFunc) string {
	pos, ok := g.index[id]
	if !ok {
		return ""
	}
	for i := pos; i >= 0; i-- {
		if mounted(g.controls[i].ID) {
			return g.controls[i].ID
		}
	}
	return ""
}

func (g *Graph) terminalTarget() Target {
	return Target{Control: g.terminal.ID, Kind: g.terminal.Kind}
}

// KeyPress is a key event reported by the caller.
type KeyPress struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

func (k KeyPress) HasModifier() bool {
	return k.Shift || k.Ctrl || k.Alt || k.Meta
}

func (k KeyPress) IsEnter() bool {
	return k.Key == "Enter" || k.Key == "enter"
}

type KeyAction string

const (
	KeyIgnored KeyAction = "ignored"
	KeyAdvance KeyAction = "advance"
	KeyNewline KeyAction = "newline"
)

type KeyResult struct {
	Action KeyAction `json:"action"`
	Target *Target   `json:"target,omitempty"`
}

// HandleKey applies the Enter contract: single-line controls always
// advance; multi-line controls insert a line break when a modifier is
// held and advance on plain Enter.
func (g *Graph) HandleKey(current string, key KeyPress, mounted MountedFunc) KeyResult {
	if !key.IsEnter() {
		return KeyResult{Action: KeyIgnored}
	}
	if control, ok := g.Control(current); ok && control.Kind == KindMultiline && key.HasModifier() {
		return KeyResult{Action: KeyNewline}
	}
	target := g.Next(current, mounted)
	return KeyResult{Action: KeyAdvance, Target: &target}
}
