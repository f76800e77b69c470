package draft

import "sync"

// Book keeps the current draft of each form component.
type Book struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{drafts: make(map[string]Draft)}
}

// Get returns the component's draft, empty if none was started.
func (b *Book) Get(component string) Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(component)
}

// Merge applies a streamed update to the component's draft.
func (b *Book) Merge(component string, update map[string]any) Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.get(component).Merge(update)
	b.drafts[component] = d
	return d
}

// Edit applies user edits to the component's draft.
func (b *Book) Edit(component string, fields map[string]any) Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.get(component).Edit(fields)
	b.drafts[component] = d
	return d
}

// Reset discards the component's draft.
func (b *Book) Reset(component string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, component)
}

func (b *Book) get(component string) Draft {
	if d, ok := b.drafts[component]; ok {
		return d
	}
	return New(component)
}
