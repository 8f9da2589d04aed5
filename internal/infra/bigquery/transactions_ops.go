package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/domain"
	"google.golang.org/api/iterator"
)

// InsertTransactionsWithClient streams a batch of transactions into the
// transactions table.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, transactionToRow(tx))
	}

	table := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// transactionFilterSQL returns the WHERE clause and parameters for a filter.
func transactionFilterSQL(filter domain.TransactionFilter) (string, []bigquery.QueryParameter) {
	where := "WHERE user_id = @user_id"
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: filter.UserID},
	}
	if !filter.From.IsZero() {
		where += "\n\t\t  AND transaction_date >= @start_date"
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.From.Format(dateFormat)})
	}
	if !filter.To.IsZero() {
		where += "\n\t\t  AND transaction_date <= @end_date"
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.To.Format(dateFormat)})
	}
	return where, params
}

// QueryTransactionsWithClient returns a user's transactions within the
// filter's date range, oldest first.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where, params := transactionFilterSQL(filter)
	q := client.Query(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			amount,
			currency,
			is_income,
			description,
			category_id,
			category_name,
			category_confidence,
			category_source,
			source,
			receipt_uri,
			created_ts
		FROM ` + ds.Table(transactionsTable) + `
		` + where + `
		ORDER BY transaction_date, created_ts
	`)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iter next: %w", err)
		}
		tx, err := transactionFromRow(&r)
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}
