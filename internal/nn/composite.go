package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/learner/internal/tensor"
)

// StateSeparator joins a child id and a parameter name in Composite state keys.
const StateSeparator = "/"

// Child is one entry of a Composite.
type Child struct {
	ID     string
	Module Module
}

// Composite groups child modules keyed by id, in insertion order.
// Its parameters are the concatenation of its children's parameters.
type Composite struct {
	children []Child
	device   tensor.Device
}

// NewComposite creates a composite from children. Ids must be unique and
// must not contain StateSeparator.
func NewComposite(children ...Child) (*Composite, error) {
	c := &Composite{device: tensor.CPU}
	for _, child := range children {
		if err := c.Add(child.ID, child.Module); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a child.
func (c *Composite) Add(id string, m Module) error {
	if id == "" || strings.Contains(id, StateSeparator) {
		return fmt.Errorf("composite: invalid child id %q", id)
	}
	if c.index(id) >= 0 {
		return fmt.Errorf("composite: duplicate child id %q", id)
	}
	c.children = append(c.children, Child{ID: id, Module: m})
	return nil
}

// Child returns the child registered under id.
func (c *Composite) Child(id string) (Module, bool) {
	if i := c.index(id); i >= 0 {
		return c.children[i].Module, true
	}
	return nil, false
}

// Children returns the children in insertion order.
func (c *Composite) Children() []Child {
	out := make([]Child, len(c.children))
	copy(out, c.children)
	return out
}

// Replace swaps the module stored under id, keeping its position.
func (c *Composite) Replace(id string, m Module) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("composite: unknown child id %q", id)
	}
	c.children[i].Module = m
	return nil
}

func (c *Composite) index(id string) int {
	for i, child := range c.children {
		if child.ID == id {
			return i
		}
	}
	return -1
}

// Kind returns KindComposite.
func (c *Composite) Kind() Kind { return KindComposite }

// Parameters returns every child's parameters in child order.
func (c *Composite) Parameters() []*Parameter {
	var params []*Parameter
	for _, child := range c.children {
		params = append(params, child.Module.Parameters()...)
	}
	return params
}

// To moves every child to device.
func (c *Composite) To(device tensor.Device) error {
	for _, child := range c.children {
		if err := child.Module.To(device); err != nil {
			return fmt.Errorf("composite child %q: %w", child.ID, err)
		}
	}
	c.device = device
	return nil
}

// Device returns the composite's device.
func (c *Composite) Device() tensor.Device { return c.device }

// State exports every child's state with keys "<child>/<param>".
func (c *Composite) State() State {
	s := make(State)
	for _, child := range c.children {
		for name, arr := range child.Module.State() {
			s[child.ID+StateSeparator+name] = arr
		}
	}
	return s
}

// SetState routes entries to children by key prefix. If a child rejects
// its entries, children already written are restored.
func (c *Composite) SetState(s State) error {
	perChild := make(map[string]State)
	for key, arr := range s {
		id, name, ok := strings.Cut(key, StateSeparator)
		if !ok || c.index(id) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, key)
		}
		if perChild[id] == nil {
			perChild[id] = make(State)
		}
		perChild[id][name] = arr
	}

	var written []Child
	backups := make(map[string]State)
	for _, child := range c.children {
		sub, ok := perChild[child.ID]
		if !ok {
			continue
		}
		backups[child.ID] = child.Module.State()
		if err := child.Module.SetState(sub); err != nil {
			for _, done := range written {
				_ = done.Module.SetState(backups[done.ID])
			}
			return fmt.Errorf("composite child %q: %w", child.ID, err)
		}
		written = append(written, child)
	}
	return nil
}
