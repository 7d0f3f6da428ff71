package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bilan/internal/core"
	"bilan/internal/store"

	_ "modernc.org/sqlite"
)

var (
	_ store.BudgetStore  = (*SQLiteRepository)(nil)
	_ store.BatchUpdater = (*SQLiteRepository)(nil)
)

const startDateLayout = "2006-01-02"

type SQLiteRepository struct {
	db    *sql.DB
	newID func() string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY under fan-out
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, newID: uuid.NewString}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListItems(ctx context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, name, year, month, parent_id, planned_amount, actual_amount, sort_order
		FROM budget_items
		WHERE owner_id = ? AND year = ? AND month = ?
		ORDER BY kind, parent_id, sort_order, id`,
		ownerID, p.Year, p.Month)
	if err != nil {
		return nil, core.NewStoreError("list items", err)
	}
	defer rows.Close()

	var items []core.BudgetItem
	for rows.Next() {
		var (
			it              core.BudgetItem
			kind            string
			planned, actual string
		)
		if err := rows.Scan(&it.ID, &it.OwnerID, &kind, &it.Name, &it.Year, &it.Month,
			&it.ParentID, &planned, &actual, &it.Order); err != nil {
			return nil, core.NewStoreError("list items", fmt.Errorf("scan: %w", err))
		}
		it.Kind = core.Kind(kind)
		if it.PlannedAmount, err = decimal.NewFromString(planned); err != nil {
			return nil, core.NewStoreError("list items", fmt.Errorf("item %s planned amount: %w", it.ID, err))
		}
		if it.ActualAmount, err = decimal.NewFromString(actual); err != nil {
			return nil, core.NewStoreError("list items", fmt.Errorf("item %s actual amount: %w", it.ID, err))
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("list items", err)
	}
	return items, nil
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, it core.BudgetItem) (string, error) {
	id := r.newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_items (id, owner_id, kind, name, year, month, parent_id, planned_amount, actual_amount, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, it.OwnerID, string(it.Kind), it.Name, it.Year, it.Month, it.ParentID,
		it.PlannedAmount.String(), it.ActualAmount.String(), it.Order)
	if err != nil {
		return "", core.NewStoreError("create item", err)
	}

	slog.DebugContext(ctx, "Budget item saved to SQLite", "id", id, "kind", it.Kind, "period", it.Period().String())
	return id, nil
}

func (r *SQLiteRepository) UpdateItem(ctx context.Context, id string, patch core.ItemPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*patch.Name))
	}
	if patch.PlannedAmount != nil {
		sets = append(sets, "planned_amount = ?")
		args = append(args, patch.PlannedAmount.String())
	}
	if patch.ActualAmount != nil {
		sets = append(sets, "actual_amount = ?")
		args = append(args, patch.ActualAmount.String())
	}
	if patch.Order != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *patch.Order)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE budget_items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return core.NewStoreError("update item", err)
	}
	return requireAffected(res, "update item", "item", id)
}

// UpdateItemsBatch writes all order changes in one transaction.
func (r *SQLiteRepository) UpdateItemsBatch(ctx context.Context, changes []core.OrderChange) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStoreError("update items batch", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE budget_items SET sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	if err != nil {
		return core.NewStoreError("update items batch", fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for _, c := range changes {
		res, err := stmt.ExecContext(ctx, c.Order, c.ID)
		if err != nil {
			return core.NewStoreError("update items batch", err)
		}
		if err := requireAffected(res, "update items batch", "item", c.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewStoreError("update items batch", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM budget_items WHERE id = ?", id)
	if err != nil {
		return core.NewStoreError("delete item", err)
	}
	return requireAffected(res, "delete item", "item", id)
}

func (r *SQLiteRepository) ListRevenues(ctx context.Context, ownerID string, p core.Period) ([]core.Revenue, error) {
	return r.queryRevenues(ctx, "list revenues", `
		SELECT id, owner_id, year, month, description, amount, recurrence_kind, group_id, start_date
		FROM revenues
		WHERE owner_id = ? AND year = ? AND month = ?
		ORDER BY id`,
		ownerID, p.Year, p.Month)
}

func (r *SQLiteRepository) ListRevenuesByGroup(ctx context.Context, groupID string) ([]core.Revenue, error) {
	if groupID == "" {
		return nil, nil
	}
	return r.queryRevenues(ctx, "list revenues by group", `
		SELECT id, owner_id, year, month, description, amount, recurrence_kind, group_id, start_date
		FROM revenues
		WHERE group_id = ?
		ORDER BY year, month, id`,
		groupID)
}

func (r *SQLiteRepository) CreateRevenue(ctx context.Context, rev core.Revenue) (string, error) {
	id := r.newID()
	var start sql.NullString
	if rev.StartDate != nil {
		start = sql.NullString{String: rev.StartDate.Format(startDateLayout), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revenues (id, owner_id, year, month, description, amount, recurrence_kind, group_id, start_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rev.OwnerID, rev.Year, rev.Month, rev.Description, rev.Amount.String(),
		string(rev.RecurrenceKind), rev.GroupID, start)
	if err != nil {
		return "", core.NewStoreError("create revenue", err)
	}

	slog.DebugContext(ctx, "Revenue saved to SQLite", "id", id, "group_id", rev.GroupID, "period", rev.Period().String())
	return id, nil
}

func (r *SQLiteRepository) DeleteRevenue(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM revenues WHERE id = ?", id)
	if err != nil {
		return core.NewStoreError("delete revenue", err)
	}
	return requireAffected(res, "delete revenue", "revenue", id)
}

func (r *SQLiteRepository) queryRevenues(ctx context.Context, op, query string, args ...any) ([]core.Revenue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStoreError(op, err)
	}
	defer rows.Close()

	var revs []core.Revenue
	for rows.Next() {
		var (
			rev          core.Revenue
			amount, kind string
			start        sql.NullString
		)
		if err := rows.Scan(&rev.ID, &rev.OwnerID, &rev.Year, &rev.Month, &rev.Description,
			&amount, &kind, &rev.GroupID, &start); err != nil {
			return nil, core.NewStoreError(op, fmt.Errorf("scan: %w", err))
		}
		rev.RecurrenceKind = core.RecurrenceKind(kind)
		if rev.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, core.NewStoreError(op, fmt.Errorf("revenue %s amount: %w", rev.ID, err))
		}
		if start.Valid {
			t, err := time.Parse(startDateLayout, start.String)
			if err != nil {
				return nil, core.NewStoreError(op, fmt.Errorf("revenue %s start date: %w", rev.ID, err))
			}
			rev.StartDate = &t
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError(op, err)
	}
	return revs, nil
}

func requireAffected(res sql.Result, op, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStoreError(op, err)
	}
	if n == 0 {
		return core.NewStoreError(op, fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound))
	}
	return nil
}
