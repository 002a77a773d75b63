package page

import (
	"errors"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
)

var ErrNavigationUnsupported = errors.New("page cannot navigate outside a request")

// RequestPage is a Page over a single fiber request. Fields come from the query and
// form body; navigation answers the request with a 303 redirect.
type RequestPage struct {
	c         *fiber.Ctx
	Status    StatusRegion
	navigated string
}

func FromFiber(c *fiber.Ctx) *RequestPage {
	return &RequestPage{c: c}
}

func (p *RequestPage) Field(id string) string {
	return p.c.FormValue(id)
}

func (p *RequestPage) AppendStatus(text string) {
	p.Status.Append(text)
}

func (p *RequestPage) Navigate(target string) error {
	if err := p.c.Redirect(target, fiber.StatusSeeOther); err != nil {
		return err
	}
	p.navigated = target
	return nil
}

// Navigated returns the navigation target, empty if the page did not navigate.
func (p *RequestPage) Navigated() string {
	return p.navigated
}

func (p *RequestPage) Location() *url.URL {
	u, err := url.Parse(p.c.BaseURL() + p.c.OriginalURL())
	if err != nil {
		return &url.URL{Path: p.c.Path()}
	}
	return u
}

// SessionPage is a Page that outlives requests: its location is fixed when the page
// loads and its fields are replaced by every submitted form.
type SessionPage struct {
	status   *StatusRegion
	location *url.URL

	mu     sync.Mutex
	fields Fields
}

func NewSessionPage(location *url.URL, status *StatusRegion) *SessionPage {
	u := *location
	return &SessionPage{
		status:   status,
		location: &u,
		fields:   Fields{},
	}
}

// Fill replaces the page fields with the values posted in c and returns them.
// The returned Fields belong to this request only; later submissions do not change them.
func (p *SessionPage) Fill(c *fiber.Ctx, ids ...string) Fields {
	fields := make(Fields, len(ids))
	for _, id := range ids {
		fields[id] = c.FormValue(id)
	}
	p.mu.Lock()
	p.fields = fields.clone()
	p.mu.Unlock()
	return fields
}

func (p *SessionPage) Field(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields[id]
}

func (p *SessionPage) AppendStatus(text string) {
	p.status.Append(text)
}

func (p *SessionPage) Navigate(string) error {
	return ErrNavigationUnsupported
}

func (p *SessionPage) Location() *url.URL {
	u := *p.location
	return &u
}
