package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

const contractColumns = `id, market_id, emitter_id, buyer_id, side, qty::text, entry_price::text, currency, status,
	margin_emitter::text, margin_buyer::text, created_at, closed_at, close_price::text, liquidation_reason`

// InsertContract сохраняет новый контракт, заполняя id и created_at.
func (r *PostgresRepository) InsertContract(ctx context.Context, c *model.FuturesContract) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO futures_contracts (market_id, emitter_id, buyer_id, side, qty, entry_price, currency, status, margin_emitter, margin_buyer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		c.MarketID, c.EmitterID, c.BuyerID, string(c.Side), c.Qty, c.EntryPrice, string(c.Currency),
		string(c.Status), c.MarginEmitter, c.MarginBuyer,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// GetContract возвращает контракт по идентификатору.
func (r *PostgresRepository) GetContract(ctx context.Context, id int64) (*model.FuturesContract, error) {
	return r.getContract(ctx, id, "")
}

// GetContractForUpdate блокирует строку контракта до конца транзакции.
func (r *PostgresRepository) GetContractForUpdate(ctx context.Context, id int64) (*model.FuturesContract, error) {
	if err := requireTx(ctx, "get contract for update"); err != nil {
		return nil, err
	}
	return r.getContract(ctx, id, " FOR UPDATE")
}

func (r *PostgresRepository) getContract(ctx context.Context, id int64, lock string) (*model.FuturesContract, error) {
	row := r.q(ctx).QueryRow(ctx,
		`SELECT `+contractColumns+` FROM futures_contracts WHERE id = $1`+lock,
		id,
	)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: contract %d", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// UpdateContract сохраняет изменяемые поля контракта.
func (r *PostgresRepository) UpdateContract(ctx context.Context, c *model.FuturesContract) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE futures_contracts
		 SET buyer_id = $2, status = $3, margin_buyer = $4, closed_at = $5, close_price = $6, liquidation_reason = $7
		 WHERE id = $1`,
		c.ID, c.BuyerID, string(c.Status), c.MarginBuyer, c.ClosedAt, nullDecimal(c.ClosePrice), c.LiquidationReason,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update contract: %w: contract %d", model.ErrNotFound, c.ID)
	}
	return nil
}

// GetContractsByStatus возвращает контракты в указанном статусе по возрастанию идентификатора.
func (r *PostgresRepository) GetContractsByStatus(ctx context.Context, status model.ContractStatus) ([]model.FuturesContract, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT `+contractColumns+` FROM futures_contracts WHERE status = $1 ORDER BY id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select contracts: %w", err)
	}
	defer rows.Close()

	var res []model.FuturesContract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanContract(row pgx.Row) (*model.FuturesContract, error) {
	var (
		c                                      model.FuturesContract
		side, currency, status                 string
		qty, entry, marginEmitter, marginBuyer string
		closePrice                             *string
		closedAt                               *time.Time
	)
	err := row.Scan(&c.ID, &c.MarketID, &c.EmitterID, &c.BuyerID, &side, &qty, &entry, &currency, &status,
		&marginEmitter, &marginBuyer, &c.CreatedAt, &closedAt, &closePrice, &c.LiquidationReason)
	if err != nil {
		return nil, err
	}

	c.Side = model.Side(side)
	c.Currency = model.Currency(currency)
	c.Status = model.ContractStatus(status)
	c.ClosedAt = closedAt

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&c.Qty, qty},
		{&c.EntryPrice, entry},
		{&c.MarginEmitter, marginEmitter},
		{&c.MarginBuyer, marginBuyer},
	} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return nil, err
		}
	}
	if c.ClosePrice, err = parseNullDecimal(closePrice); err != nil {
		return nil, err
	}
	return &c, nil
}
