package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable   = "transactions"
	categoriesTable     = "categories"
	categoryMemoryTable = "category_memory"
	limitsTable         = "limits"
	dateFormat          = "2006-01-02"
)

// Dataset addresses the tables of one BigQuery dataset.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backquoted name of a table for use in SQL.
func (d Dataset) Table(name string) string {
	return "`" + d.ProjectID + "." + d.DatasetID + "." + name + "`"
}

func (d Dataset) validate() error {
	if d.ProjectID == "" || d.DatasetID == "" {
		return fmt.Errorf("dataset requires project and dataset IDs, got %q.%q", d.ProjectID, d.DatasetID)
	}
	return nil
}

// runDML runs a DML statement to completion and returns the number of
// affected rows.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return stats.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}
