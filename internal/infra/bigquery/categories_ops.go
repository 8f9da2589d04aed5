package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/domain"
	"google.golang.org/api/iterator"
)

// ListActiveCategoriesWithClient returns the active categories of a user
// ordered by name.
func ListActiveCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]domain.Category, error) {
	q := client.Query(`
		SELECT
		  category_id,
		  user_id,
		  name,
		  is_active,
		  created_ts
		FROM ` + ds.Table(categoriesTable) + `
		WHERE user_id = @user_id
		  AND (is_active IS NULL OR is_active = TRUE)
		ORDER BY name
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: query read: %w", err)
	}

	var cats []domain.Category
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCategories: iter next: %w", err)
		}
		cats = append(cats, categoryFromRow(r))
	}

	return cats, nil
}

// InsertCategoryWithClient adds a category for a user.
func InsertCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, cat domain.Category) error {
	if cat.ID == "" || cat.UserID == "" || cat.Name == "" {
		return fmt.Errorf("InsertCategory: id, user and name are required")
	}

	q := client.Query(`
		INSERT INTO ` + ds.Table(categoriesTable) + `
		  (category_id, user_id, name, is_active, created_ts)
		VALUES
		  (@category_id, @user_id, @name, TRUE, @created_ts)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category_id", Value: cat.ID},
		{Name: "user_id", Value: cat.UserID},
		{Name: "name", Value: cat.Name},
		{Name: "created_ts", Value: cat.CreatedAt},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertCategory: %w", err)
	}
	return nil
}
