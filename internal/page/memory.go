package page

import (
	"net/url"
	"sync"
)

// MemoryPage is a Page backed by plain maps. Navigations are recorded, not followed.
type MemoryPage struct {
	Status StatusRegion

	mu          sync.Mutex
	location    *url.URL
	fields      map[string]string
	navigations []string
	navigateErr error
}

func NewMemoryPage(location string, fields map[string]string) (*MemoryPage, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	f := make(map[string]string, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &MemoryPage{location: u, fields: f}, nil
}

func (p *MemoryPage) Field(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields[id]
}

func (p *MemoryPage) SetField(id, value string) {
	p.mu.Lock()
	p.fields[id] = value
	p.mu.Unlock()
}

func (p *MemoryPage) AppendStatus(text string) {
	p.Status.Append(text)
}

// FailNavigation makes subsequent Navigate calls return err.
func (p *MemoryPage) FailNavigation(err error) {
	p.mu.Lock()
	p.navigateErr = err
	p.mu.Unlock()
}

func (p *MemoryPage) Navigate(target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navigateErr != nil {
		return p.navigateErr
	}
	ref, err := url.Parse(target)
	if err != nil {
		return err
	}
	resolved := p.location.ResolveReference(ref)
	p.navigations = append(p.navigations, resolved.String())
	return nil
}

func (p *MemoryPage) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.location
	return &u
}

// Navigations lists the absolute URLs passed to Navigate.
func (p *MemoryPage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.navigations))
	copy(out, p.navigations)
	return out
}
