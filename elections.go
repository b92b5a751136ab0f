package betclient

import (
	"context"
	"net/http"
	"net/url"
)

// GetElections lists every election market with its candidates. Served by
// the root upstream and cached for 5m.
func (c *Client) GetElections(ctx context.Context) ([]Election, error) {
	return cachedGet[[]Election](ctx, c, "GetElections", KeyElections, c.root, "/elections")
}

// AddElection creates an election. Invalidates the cached elections.
func (c *Client) AddElection(ctx context.Context, e Election) (*Election, error) {
	return c.electionCall(ctx, "AddElection", OpAddElection, http.MethodPost, "/election", e)
}

// UpdateElection replaces election id. Invalidates the cached elections.
func (c *Client) UpdateElection(ctx context.Context, id ID, e Election) (*Election, error) {
	return c.electionCall(ctx, "UpdateElection", OpUpdateElection, http.MethodPut, "/election/"+url.PathEscape(id.String()), e)
}

// DeleteElection removes election id. Invalidates the cached elections.
func (c *Client) DeleteElection(ctx context.Context, id ID) error {
	_, err := c.send(ctx, mutation{
		name:   "DeleteElection",
		op:     OpDeleteElection,
		up:     c.root,
		method: http.MethodDelete,
		path:   "/election/" + url.PathEscape(id.String()),
	})
	return err
}

// AddCandidate creates a candidate. Invalidates the cached elections.
func (c *Client) AddCandidate(ctx context.Context, cand Candidate) (*Candidate, error) {
	return c.candidateCall(ctx, "AddCandidate", OpAddCandidate, http.MethodPost, "/candidate", cand)
}

// UpdateCandidate replaces candidate id. Invalidates the cached elections.
func (c *Client) UpdateCandidate(ctx context.Context, id ID, cand Candidate) (*Candidate, error) {
	return c.candidateCall(ctx, "UpdateCandidate", OpUpdateCandidate, http.MethodPut, "/candidate/"+url.PathEscape(id.String()), cand)
}

// DeleteCandidate removes candidate id. Invalidates the cached elections.
func (c *Client) DeleteCandidate(ctx context.Context, id ID) error {
	_, err := c.send(ctx, mutation{
		name:   "DeleteCandidate",
		op:     OpDeleteCandidate,
		up:     c.root,
		method: http.MethodDelete,
		path:   "/candidate/" + url.PathEscape(id.String()),
	})
	return err
}

func (c *Client) electionCall(ctx context.Context, name string, op Operation, method, path string, e Election) (*Election, error) {
	out, err := mutate[Election](ctx, c, mutation{name: name, op: op, up: c.root, method: method, path: path, body: e})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) candidateCall(ctx context.Context, name string, op Operation, method, path string, cand Candidate) (*Candidate, error) {
	out, err := mutate[Candidate](ctx, c, mutation{name: name, op: op, up: c.root, method: method, path: path, body: cand})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
