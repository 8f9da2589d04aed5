// Package notionsync exports recorded transactions into a Notion database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/logger"
)

// pageSize is the Notion maximum for database queries.
const pageSize = 100

// ExportStats summarises one export run.
type ExportStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExportTransactions copies a user's transactions between from and to into
// the Notion database. Transactions whose id already has a page are skipped,
// so repeated runs do not duplicate pages. With dryRun nothing is written.
func ExportTransactions(
	ctx context.Context,
	repo domain.TransactionRepository,
	notion NotionService,
	databaseID, userID string,
	from, to time.Time,
	dryRun bool,
) (ExportStats, error) {
	log := logger.FromContext(ctx)
	var stats ExportStats

	if databaseID == "" {
		return stats, fmt.Errorf("ExportTransactions: notion database id is required")
	}
	if userID == "" {
		return stats, fmt.Errorf("ExportTransactions: user id is required")
	}

	log.Info().
		Str("user_id", userID).
		Time("from", from).
		Time("to", to).
		Bool("dry_run", dryRun).
		Msg("Starting transaction export to Notion")

	txs, err := repo.ListTransactions(ctx, domain.TransactionFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return stats, fmt.Errorf("ExportTransactions: listing transactions: %w", err)
	}
	stats.Total = len(txs)

	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return stats, fmt.Errorf("ExportTransactions: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = true
		}
	}

	for _, tx := range txs {
		if existing[tx.ID] {
			stats.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		page, err := notion.CreatePage(ctx, databaseID, TransactionToNotionProperties(tx, tx.CategoryName))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		existing[tx.ID] = true
		stats.Created++

		log.Debug().
			Str("transaction_id", tx.ID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
	}

	log.Info().
		Int("total", stats.Total).
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Transaction export completed")

	return stats, nil
}

func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
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
