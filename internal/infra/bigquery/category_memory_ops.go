package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"google.golang.org/api/iterator"
)

// Memory records are written with DML rather than the streaming inserter:
// rows still in the streaming buffer cannot be updated or deleted.

// ListCategoryMemoryWithClient returns all memory records of a user, oldest first.
func ListCategoryMemoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]categorymemory.Record, error) {
	q := client.Query(`
		SELECT
		  record_id,
		  user_id,
		  description_pattern,
		  category_id,
		  confidence,
		  usage_count,
		  last_used,
		  created_ts
		FROM ` + ds.Table(categoryMemoryTable) + `
		WHERE user_id = @user_id
		ORDER BY created_ts, record_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoryMemory: query read: %w", err)
	}

	var recs []categorymemory.Record
	for {
		var r CategoryMemoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoryMemory: iter next: %w", err)
		}
		recs = append(recs, r.record())
	}

	return recs, nil
}

// InsertCategoryMemoryWithClient adds a memory record.
func InsertCategoryMemoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rec categorymemory.Record) error {
	if rec.ID == "" || rec.UserID == "" {
		return fmt.Errorf("InsertCategoryMemory: record id and user id are required")
	}

	row := memoryRowFromRecord(rec)
	q := client.Query(`
		INSERT INTO ` + ds.Table(categoryMemoryTable) + `
		  (record_id, user_id, description_pattern, category_id, confidence, usage_count, last_used, created_ts)
		VALUES
		  (@record_id, @user_id, @pattern, @category_id, @confidence, @usage_count, @last_used, @created_ts)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "record_id", Value: row.RecordID},
		{Name: "user_id", Value: row.UserID},
		{Name: "pattern", Value: row.Pattern},
		{Name: "category_id", Value: row.CategoryID},
		{Name: "confidence", Value: row.Confidence},
		{Name: "usage_count", Value: row.UsageCount},
		{Name: "last_used", Value: row.LastUsed},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertCategoryMemory: %w", err)
	}
	return nil
}

// UpdateCategoryMemoryWithClient overwrites confidence, usage count and last
// use of an existing record.
func UpdateCategoryMemoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rec categorymemory.Record) error {
	q := client.Query(`
		UPDATE ` + ds.Table(categoryMemoryTable) + `
		SET confidence = @confidence,
		    usage_count = @usage_count,
		    last_used = @last_used
		WHERE record_id = @record_id
		  AND user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "confidence", Value: rec.Confidence},
		{Name: "usage_count", Value: rec.UsageCount},
		{Name: "last_used", Value: rec.LastUsed},
		{Name: "record_id", Value: rec.ID},
		{Name: "user_id", Value: rec.UserID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateCategoryMemory: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateCategoryMemory: record %s not found for user %s", rec.ID, rec.UserID)
	}
	return nil
}

func staleFilterParams(filter categorymemory.StaleFilter) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "user_id", Value: filter.UserID},
		{Name: "last_used_before", Value: filter.LastUsedBefore},
		{Name: "max_confidence", Value: filter.MaxConfidence},
		{Name: "max_usage", Value: filter.MaxUsage},
	}
}

// DeleteStaleCategoryMemoryWithClient removes records matching the filter
// and returns how many were deleted. An empty filter user matches every user.
func DeleteStaleCategoryMemoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter categorymemory.StaleFilter) (int64, error) {
	q := client.Query(`
		DELETE FROM ` + ds.Table(categoryMemoryTable) + `
		WHERE (@user_id = '' OR user_id = @user_id)
		  AND last_used < @last_used_before
		  AND confidence < @max_confidence
		  AND usage_count < @max_usage
	`)
	q.Parameters = staleFilterParams(filter)

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("DeleteStaleCategoryMemory: %w", err)
	}
	return n, nil
}
