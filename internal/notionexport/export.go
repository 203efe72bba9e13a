package notionexport

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/aggregate"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Stats summarizes one export run.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

// Export pushes every line item in the consolidated ledger to the Notion
// database. Existing pages are matched by their Item Key property — derived
// from the owning record's bill hash, so it stays stable across snapshot
// restores — and updated in place, making re-runs idempotent. With dryRun
// set it only logs what would change.
func Export(ctx context.Context, client NotionService, databaseID string, led *aggregate.Ledger, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	log.Info().
		Str("database_id", databaseID).
		Bool("dry_run", dryRun).
		Msg("Starting ledger export to Notion")

	existing, err := queryAllPages(ctx, client, databaseID)
	if err != nil {
		return stats, fmt.Errorf("export: %w", err)
	}

	pageByKey := make(map[string]string, len(existing))
	for _, page := range existing {
		if key := extractItemKey(page); key != "" {
			pageByKey[key] = string(page.ID)
		}
	}

	log.Info().Int("existing_pages", len(pageByKey)).Msg("Retrieved existing Notion pages")

	for _, period := range led.Periods {
		for _, group := range period.Institutions {
			for _, table := range group.Tables {
				for _, item := range table.Items {
					props := ItemToProperties(period.Period, group.Institution, table.Array, item)
					key := ExportKey(table.Array, item)

					if pageID, ok := pageByKey[key]; ok {
						if dryRun {
							log.Info().Str("item_key", key).Msg("[DRY RUN] Would update page")
							stats.Skipped++
							continue
						}
						if _, err := client.UpdatePage(ctx, pageID, props); err != nil {
							log.Warn().Err(err).Str("item_key", key).Msg("Failed to update Notion page")
							continue
						}
						stats.Updated++
						continue
					}

					if dryRun {
						log.Info().Str("item_key", key).Msg("[DRY RUN] Would create page")
						stats.Skipped++
						continue
					}
					if _, err := client.CreatePage(ctx, databaseID, props); err != nil {
						log.Warn().Err(err).Str("item_key", key).Msg("Failed to create Notion page")
						continue
					}
					stats.Created++
				}
			}
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Msg("Ledger export finished")

	return stats, nil
}

func queryAllPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
