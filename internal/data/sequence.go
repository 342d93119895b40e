package data

import (
	"context"
	"fmt"
)

// SequenceModel issues strictly increasing row ids from a shared database
// sequence. Safe under concurrent callers across processes because the
// sequence itself is the synchronization point.
type SequenceModel struct {
	DB   DBTX
	Name string
}

// NextID fetches the next id. A failure here is fatal for the current
// event: without an id the row must not be written at all.
func (m SequenceModel) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := m.DB.QueryRowContext(ctx, `SELECT nextval($1)`, m.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sequence %s: %w", m.Name, err)
	}
	return id, nil
}
