package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

const marketSelect = `SELECT m.id, m.gift_id, g.name, m.expiry_id, e.days, m.is_active, g.is_active, e.is_active, m.price_ton::text, m.price_usdt::text
	FROM markets m
	JOIN gifts g ON g.id = m.gift_id
	JOIN expiries e ON e.id = m.expiry_id`

// GetMarket возвращает рынок по идентификатору.
func (r *PostgresRepository) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	m, err := scanMarket(r.q(ctx).QueryRow(ctx, marketSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: market %d", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

// GetMarkets возвращает все рынки по возрастанию идентификатора.
func (r *PostgresRepository) GetMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := r.q(ctx).Query(ctx, marketSelect+` ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("select markets: %w", err)
	}
	defer rows.Close()

	var res []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetMarketActive включает или выключает рынок.
func (r *PostgresRepository) SetMarketActive(ctx context.Context, id int64, active bool) (*model.Market, error) {
	tag, err := r.q(ctx).Exec(ctx, `UPDATE markets SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return nil, fmt.Errorf("update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: market %d", model.ErrNotFound, id)
	}
	return r.GetMarket(ctx, id)
}

// SetGiftActive включает или выключает подарок.
func (r *PostgresRepository) SetGiftActive(ctx context.Context, id int64, active bool) (*model.Gift, error) {
	g := model.Gift{ID: id}
	err := r.q(ctx).QueryRow(ctx,
		`UPDATE gifts SET is_active = $2 WHERE id = $1 RETURNING name, is_active`,
		id, active,
	).Scan(&g.Name, &g.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: gift %d", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("update gift: %w", err)
	}
	return &g, nil
}

// SetExpiryActive включает или выключает экспирацию.
func (r *PostgresRepository) SetExpiryActive(ctx context.Context, id int64, active bool) (*model.Expiry, error) {
	e := model.Expiry{ID: id}
	err := r.q(ctx).QueryRow(ctx,
		`UPDATE expiries SET is_active = $2 WHERE id = $1 RETURNING days, is_active`,
		id, active,
	).Scan(&e.Days, &e.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: expiry %d", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("update expiry: %w", err)
	}
	return &e, nil
}

// UpdateMarketPrices выставляет цену в TON всем рынкам подарка и возвращает число обновлённых рынков.
func (r *PostgresRepository) UpdateMarketPrices(ctx context.Context, giftName string, priceTON decimal.Decimal) (int, error) {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE markets SET price_ton = $2
		 WHERE gift_id IN (SELECT id FROM gifts WHERE name = $1)`,
		giftName, priceTON,
	)
	if err != nil {
		return 0, fmt.Errorf("update market prices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanMarket(row pgx.Row) (*model.Market, error) {
	var (
		m                   model.Market
		priceTON, priceUSDT *string
	)
	if err := row.Scan(&m.ID, &m.GiftID, &m.GiftName, &m.ExpiryID, &m.ExpiryDays, &m.IsActive, &m.GiftActive, &m.ExpiryActive, &priceTON, &priceUSDT); err != nil {
		return nil, err
	}

	var err error
	if m.PriceTON, err = parseNullDecimal(priceTON); err != nil {
		return nil, err
	}
	if m.PriceUSDT, err = parseNullDecimal(priceUSDT); err != nil {
		return nil, err
	}
	return &m, nil
}
