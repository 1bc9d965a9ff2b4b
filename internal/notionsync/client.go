package notionsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jomei/notionapi"
)

// Notion allows an integration roughly three requests per second; a full
// findings sync can touch every page in the database, so calls are spaced
// to stay under the limit instead of surfacing 429s mid-run.
const requestInterval = 350 * time.Millisecond

// NotionClient implements NotionService on the official Notion SDK with
// client-side request pacing.
type NotionClient struct {
	client *notionapi.Client

	mu   sync.Mutex
	next time.Time
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a paced client with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// pace blocks until the next request slot, or until ctx is done.
func (n *NotionClient) pace(ctx context.Context) error {
	n.mu.Lock()
	now := time.Now()
	wait := n.next.Sub(now)
	if wait > 0 {
		n.next = n.next.Add(requestInterval)
	} else {
		wait = 0
		n.next = now.Add(requestInterval)
	}
	n.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreatePage creates a page for a finding in the given database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.pace(ctx); err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// UpdatePage replaces the finding properties on an existing page.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.pace(ctx); err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}

	req := &notionapi.PageUpdateRequest{
		Properties: properties,
	}

	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}

	return page, nil
}

// QueryDatabase returns one result page of a database query.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := n.pace(ctx); err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}

	return resp, nil
}

// DeletePage archives a page by flipping its archived flag.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	if err := n.pace(ctx); err != nil {
		return fmt.Errorf("DeletePage: %w", err)
	}

	req := &notionapi.PageUpdateRequest{
		Archived: true,
	}

	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return fmt.Errorf("DeletePage: %w", err)
	}

	return nil
}
