package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/avlasov/spendlens/internal/analytics"
	"github.com/avlasov/spendlens/internal/logger"
)

// NotionService is the slice of the Notion API the findings sync needs.
type NotionService interface {
	// CreatePage creates a page in a database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage replaces the given properties on an existing page.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase returns one result page of a database query.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// DeletePage archives a page.
	DeletePage(ctx context.Context, pageID string) error
}

// SyncStats reports what one findings sync did.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
}

// SyncIdleFindings mirrors the current idle-resource findings into a Notion
// database. Pages are keyed by the Resource ID title: new findings get a
// page, existing ones are updated in place, and pages whose resource is no
// longer flagged are archived, so repeated syncs converge on the same board.
// With dryRun set, the plan is logged and counted but nothing is written.
func SyncIdleFindings(ctx context.Context, svc NotionService, databaseID string, findings []analytics.IdleFinding, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx)
	var stats SyncStats

	log.Info().
		Bool("dry_run", dryRun).
		Int("finding_count", len(findings)).
		Msg("Starting idle findings sync to Notion")

	// Build set of currently flagged resource IDs
	valid := make(map[string]bool)
	for _, f := range findings {
		valid[f.ResourceID] = true
	}

	// Query all existing findings pages from Notion
	pages, err := queryAllNotionPages(ctx, svc, databaseID)
	if err != nil {
		return stats, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	// Map of resource ID -> page ID for the upsert step
	existing := make(map[string]string)
	for _, page := range pages {
		if rid := extractResourceID(page); rid != "" {
			existing[rid] = string(page.ID)
		}
	}

	// Archive pages whose resource is no longer flagged, including pages
	// without a readable Resource ID left behind by older syncs.
	for _, page := range pages {
		rid := extractResourceID(page)
		if rid != "" && valid[rid] {
			continue
		}

		if dryRun {
			log.Info().
				Str("resource_id", rid).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}

		if err := svc.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("resource_id", rid).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		log.Info().
			Str("resource_id", rid).
			Str("page_id", string(page.ID)).
			Msg("Archived stale Notion page")
		stats.Deleted++
	}

	// Create or update a page per finding
	for _, f := range findings {
		pageID, ok := existing[f.ResourceID]

		if dryRun {
			if ok {
				log.Info().
					Str("resource_id", f.ResourceID).
					Str("page_id", pageID).
					Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				log.Info().
					Str("resource_id", f.ResourceID).
					Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		props := IdleFindingToProperties(f)

		if ok {
			if _, err := svc.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("resource_id", f.ResourceID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				continue
			}
			log.Info().
				Str("resource_id", f.ResourceID).
				Str("page_id", pageID).
				Msg("Updated Notion page")
			stats.Updated++
		} else {
			page, err := svc.CreatePage(ctx, databaseID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("resource_id", f.ResourceID).
					Msg("Failed to create Notion page")
				continue
			}
			log.Info().
				Str("resource_id", f.ResourceID).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("total", len(findings)).
		Msg("Idle findings sync completed")

	return stats, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
