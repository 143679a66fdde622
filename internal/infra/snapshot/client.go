// Package snapshot queries the Snapshot hub GraphQL API for the proposals of
// one space.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://hub.snapshot.org/graphql"
	defaultTimeout  = 20 * time.Second
	maxBodyBytes    = 1 << 20
)

const proposalsQuery = `query Proposals($space: String!, $first: Int!) {
  proposals(first: $first, skip: 0, where: {space_in: [$space]}, orderBy: "created", orderDirection: desc) {
    id
    title
    body
    start
    end
    created
  }
}`

// Proposal is a proposal as returned by the hub. Times are unix seconds.
type Proposal struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Created int64  `json:"created"`
}

func (p Proposal) StartTime() time.Time { return time.Unix(p.Start, 0).UTC() }
func (p Proposal) EndTime() time.Time   { return time.Unix(p.End, 0).UTC() }

type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type proposalsResponse struct {
	Data struct {
		Proposals []Proposal `json:"proposals"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// LatestProposals returns up to first proposals of space, newest first.
func (c *Client) LatestProposals(ctx context.Context, space string, first int) ([]Proposal, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query:     proposalsQuery,
		Variables: map[string]any{"space": space, "first": first},
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("snapshot: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out proposalsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("snapshot: decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("snapshot: api errors: %s", strings.Join(msgs, "; "))
	}
	return out.Data.Proposals, nil
}

// ProposalLink is the public page of a proposal.
func ProposalLink(space, id string) string {
	return fmt.Sprintf("https://snapshot.org/#/%s/proposal/%s", space, id)
}
