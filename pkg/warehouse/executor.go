// Package warehouse executes validated read-only queries against the EMS
// reporting database.
package warehouse

import (
	"context"

	"github.com/emsight-ai/emsight-engine/pkg/models"
)

// Executor runs one read-only query and returns its rows in column order.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error)
	Ping(ctx context.Context) error
	Close()
}
