package store

import (
	"context"

	"bilan/internal/core"
)

// Ports for the external document store. Every failure is reported as a
// *core.StoreError; lookups of unknown ids wrap core.ErrNotFound.
type (
	ItemStore interface {
		ListItems(ctx context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error)
		CreateItem(ctx context.Context, item core.BudgetItem) (id string, err error)
		UpdateItem(ctx context.Context, id string, patch core.ItemPatch) error
		DeleteItem(ctx context.Context, id string) error
	}

	RevenueStore interface {
		ListRevenues(ctx context.Context, ownerID string, p core.Period) ([]core.Revenue, error)
		ListRevenuesByGroup(ctx context.Context, groupID string) ([]core.Revenue, error)
		CreateRevenue(ctx context.Context, r core.Revenue) (id string, err error)
		DeleteRevenue(ctx context.Context, id string) error
	}

	// BudgetStore is the full read/write contract the services run against.
	BudgetStore interface {
		ItemStore
		RevenueStore
	}

	// BatchUpdater is implemented by stores able to apply several order
	// changes atomically. Either every change applies or none does.
	BatchUpdater interface {
		UpdateItemsBatch(ctx context.Context, changes []core.OrderChange) error
	}
)
