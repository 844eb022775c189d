package views

import (
	"context"
	"sync"

	"github.com/notebookgrader/grader-client/grader"
)

// AccessState is what the instructor assignment page shows
type AccessState struct {
	AccessURL string
	grader.NotebookVersion
}

// AccessPage is the instructor page of one assignment
type AccessPage struct {
	env    Env
	routes grader.Routes

	mu    sync.Mutex
	state AccessState
}

// NewAccessPage creates the page of assignment id
func NewAccessPage(env Env, id string) *AccessPage {
	env = env.withDefaults()
	return &AccessPage{env: env, routes: grader.RoutesFor(env.Client.BaseURL(), id)}
}

// State returns a snapshot of the page
func (p *AccessPage) State() AccessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load fetches the invitation URL and the notebook links
func (p *AccessPage) Load(ctx context.Context) error {
	url, err := p.env.Client.AccessURL(ctx, p.routes.AccessURL)
	if err != nil {
		return p.env.fail(ctx, err)
	}
	nv, err := p.env.Client.NotebookVersion(ctx, p.routes.NotebookVersion)
	if err != nil {
		return p.env.fail(ctx, err)
	}

	p.mu.Lock()
	p.state = AccessState{AccessURL: url, NotebookVersion: nv}
	p.mu.Unlock()
	return nil
}

// Regenerate invalidates the invitation URL and returns the new one.
// Only the owner of the assignment gets a new URL.
func (p *AccessPage) Regenerate(ctx context.Context) (string, error) {
	url, err := p.env.Client.RegenerateAccessURL(ctx, p.routes.AccessURL)
	if err != nil {
		return "", p.env.fail(ctx, err)
	}
	p.mu.Lock()
	p.state.AccessURL = url
	p.mu.Unlock()
	return url, nil
}
