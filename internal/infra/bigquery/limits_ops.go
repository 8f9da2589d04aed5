package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/domain"
	"google.golang.org/api/iterator"
)

// ListLimitsWithClient returns the spending limits of a user.
func ListLimitsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]domain.Limit, error) {
	q := client.Query(`
		SELECT
		  limit_id,
		  user_id,
		  category_id,
		  amount,
		  currency,
		  period,
		  created_ts
		FROM ` + ds.Table(limitsTable) + `
		WHERE user_id = @user_id
		ORDER BY created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListLimits: query read: %w", err)
	}

	var limits []domain.Limit
	for {
		var r LimitRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListLimits: iter next: %w", err)
		}
		l, err := limitFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("ListLimits: %w", err)
		}
		limits = append(limits, l)
	}

	return limits, nil
}

// InsertLimitWithClient adds a spending limit.
func InsertLimitWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit domain.Limit) error {
	if limit.ID == "" || limit.UserID == "" || limit.CategoryID == "" {
		return fmt.Errorf("InsertLimit: id, user and category are required")
	}

	row := limitToRow(limit)
	q := client.Query(`
		INSERT INTO ` + ds.Table(limitsTable) + `
		  (limit_id, user_id, category_id, amount, currency, period, created_ts)
		VALUES
		  (@limit_id, @user_id, @category_id, @amount, @currency, @period, @created_ts)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit_id", Value: row.LimitID},
		{Name: "user_id", Value: row.UserID},
		{Name: "category_id", Value: row.CategoryID},
		{Name: "amount", Value: row.Amount},
		{Name: "currency", Value: row.Currency},
		{Name: "period", Value: row.Period},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertLimit: %w", err)
	}
	return nil
}

// DeleteLimitWithClient removes one of the user's limits.
func DeleteLimitWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, limitID string) (bool, error) {
	q := client.Query(`
		DELETE FROM ` + ds.Table(limitsTable) + `
		WHERE user_id = @user_id
		  AND limit_id = @limit_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit_id", Value: limitID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("DeleteLimit: %w", err)
	}
	return n > 0, nil
}
