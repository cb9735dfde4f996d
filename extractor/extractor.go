package extractor

import (
	"context"
	"database/sql"

	"github.com/Luismorlan/msprsearch/model"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultQuery = "SELECT * FROM Mspr.PostCommentView"

// RowQuerier is the part of *sql.DB the extractor needs.
type RowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Extractor reads the denormalized post view with one query. Column names
// come from the result metadata, so extra or reordered columns are carried
// through untouched.
type Extractor struct {
	db      RowQuerier
	query   string
	columns []string
	log     *logrus.Entry
}

func New(db RowQuerier, query string, log *logrus.Entry) *Extractor {
	if query == "" {
		query = DefaultQuery
	}
	if log == nil {
		log = Logger.Log
	}
	return &Extractor{db: db, query: query, log: log.WithField("component", "extractor")}
}

// Columns returns the columns reported by the last run.
func (e *Extractor) Columns() []string {
	return e.columns
}

// Each streams rows to fn in query order. An error from fn stops the scan and
// is returned as is.
func (e *Extractor) Each(ctx context.Context, fn func(model.Row) error) (int, error) {
	rows, err := e.db.QueryContext(ctx, e.query)
	if err != nil {
		return 0, errors.Wrap(err, "query source view")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, errors.Wrap(err, "read source columns")
	}
	e.columns = cols
	e.log.WithField("columns", cols).Debug("source columns")

	count := 0
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return count, errors.Wrapf(err, "scan source row %d", count)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		count++
		if err := fn(row); err != nil {
			return count, err
		}
	}
	if err := rows.Err(); err != nil {
		return count, errors.Wrap(err, "iterate source rows")
	}
	return count, nil
}

// Fetch collects every row in memory.
func (e *Extractor) Fetch(ctx context.Context) ([]model.Row, error) {
	out := []model.Row{}
	_, err := e.Each(ctx, func(r model.Row) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("rows", len(out)).Info("source rows fetched")
	return out, nil
}
