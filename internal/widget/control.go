// Package widget models the select-or-create form widget: selection
// controls, the shared creation dialog and the debounced tag input. The
// browser script served with the artwork form follows the same rules.
package widget

import "sync"

// Option is one entry of a selection control.
type Option struct {
	ID       string
	Label    string
	Selected bool
}

// Control is an ordered option list that never holds two options with the
// same ID. Mutations are serialized, standing in for the browser's single
// event loop.
type Control struct {
	Name       string
	EntityType string
	CreateURL  string
	Multiple   bool

	mu        sync.Mutex
	options   []Option
	listeners []func(Option)
}

func NewControl(name, entityType, createURL string, multiple bool) *Control {
	return &Control{Name: name, EntityType: entityType, CreateURL: createURL, Multiple: multiple}
}

// Add appends options as rendered by the server, then deduplicates. A
// single-select control keeps only the first selected option.
func (c *Control) Add(opts ...Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = append(c.options, opts...)
	c.deduplicateLocked()
	if !c.Multiple {
		seen := false
		for i := range c.options {
			if c.options[i].Selected {
				if seen {
					c.options[i].Selected = false
				}
				seen = true
			}
		}
	}
}

// OnChange registers fn to run after every InsertOrSelect, outside the lock.
func (c *Control) OnChange(fn func(Option)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// InsertOrSelect selects the option with id, appending it first when
// missing. Single-select controls end with it as the only selected option;
// multi-select controls keep their current selection.
func (c *Control) InsertOrSelect(id, label string) Option {
	c.mu.Lock()
	if !c.Multiple {
		for i := range c.options {
			c.options[i].Selected = false
		}
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.options = append(c.options, Option{ID: id, Label: label})
		idx = len(c.options) - 1
	}
	c.options[idx].Selected = true
	opt := c.options[idx]
	c.deduplicateLocked()
	listeners := append([]func(Option){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(opt)
	}
	return opt
}

// Deduplicate drops every option whose ID appeared earlier, keeping the
// first occurrence, and returns how many were removed. A selected duplicate
// passes its selection to the kept option.
func (c *Control) Deduplicate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deduplicateLocked()
}

func (c *Control) deduplicateLocked() int {
	seen := make(map[string]int, len(c.options))
	kept := c.options[:0]
	removed := 0
	for _, o := range c.options {
		if at, dup := seen[o.ID]; dup {
			if o.Selected {
				kept[at].Selected = true
			}
			removed++
			continue
		}
		seen[o.ID] = len(kept)
		kept = append(kept, o)
	}
	// clear the tail so dropped options are not retained
	for i := len(kept); i < len(c.options); i++ {
		c.options[i] = Option{}
	}
	c.options = kept
	return removed
}

func (c *Control) indexLocked(id string) int {
	for i, o := range c.options {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (c *Control) Options() []Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Option(nil), c.options...)
}

func (c *Control) Selected() []Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Option
	for _, o := range c.options {
		if o.Selected {
			out = append(out, o)
		}
	}
	return out
}

func (c *Control) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(id) >= 0
}
