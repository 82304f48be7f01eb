package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos run against Tx when it is set, otherwise against their own handle.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
