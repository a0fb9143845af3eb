package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// AddUser регистрирует пользователя по идентификатору Telegram.
func (r *PostgresRepository) AddUser(ctx context.Context, telegramUserID string) (int64, error) {
	var id int64
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO users (telegram_user_id) VALUES ($1) RETURNING id`,
		telegramUserID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: telegram user %s", model.ErrDuplicate, telegramUserID)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// UserExists сообщает, зарегистрирован ли пользователь.
func (r *PostgresRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	u := model.User{ID: userID}
	err := r.q(ctx).QueryRow(ctx,
		`SELECT telegram_user_id, connected_ton_address, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&u.TelegramUserID, &u.ConnectedTONAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SetUserWallet привязывает кошелёк пользователя; nil отвязывает.
func (r *PostgresRepository) SetUserWallet(ctx context.Context, userID int64, address *string) (*model.User, error) {
	u := model.User{ID: userID}
	err := r.q(ctx).QueryRow(ctx,
		`UPDATE users SET connected_ton_address = $2 WHERE id = $1
		 RETURNING telegram_user_id, connected_ton_address, created_at`,
		userID, address,
	).Scan(&u.TelegramUserID, &u.ConnectedTONAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("update user wallet: %w", err)
	}
	return &u, nil
}

// GetBalanceForUpdate блокирует строку баланса до конца транзакции. Отсутствующая строка создаётся с нулями.
func (r *PostgresRepository) GetBalanceForUpdate(ctx context.Context, userID int64, currency model.Currency) (*model.Balance, error) {
	if err := requireTx(ctx, "get balance for update"); err != nil {
		return nil, err
	}

	_, err := r.q(ctx).Exec(ctx,
		`INSERT INTO balances (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id, currency) DO NOTHING`,
		userID, string(currency),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}

	var available, reserved string
	err = r.q(ctx).QueryRow(ctx,
		`SELECT available::text, reserved::text
		 FROM balances
		 WHERE user_id = $1 AND currency = $2
		 FOR UPDATE`,
		userID, string(currency),
	).Scan(&available, &reserved)
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}

	b := &model.Balance{UserID: userID, Currency: currency}
	if b.Available, err = parseDecimal(available); err != nil {
		return nil, err
	}
	if b.Reserved, err = parseDecimal(reserved); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveBalance сохраняет суммы заблокированной строки баланса.
func (r *PostgresRepository) SaveBalance(ctx context.Context, b *model.Balance) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE balances SET available = $3, reserved = $4 WHERE user_id = $1 AND currency = $2`,
		b.UserID, string(b.Currency), b.Available, b.Reserved,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update balance: %w: user %d %s", model.ErrNotFound, b.UserID, b.Currency)
	}
	return nil
}

// GetBalancesByUser возвращает все строки балансов пользователя.
func (r *PostgresRepository) GetBalancesByUser(ctx context.Context, userID int64) ([]model.Balance, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT currency, available::text, reserved::text
		 FROM balances
		 WHERE user_id = $1
		 ORDER BY currency`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	defer rows.Close()

	var res []model.Balance
	for rows.Next() {
		var currency, available, reserved string
		if err := rows.Scan(&currency, &available, &reserved); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}

		b := model.Balance{UserID: userID, Currency: model.Currency(currency)}
		if b.Available, err = parseDecimal(available); err != nil {
			return nil, err
		}
		if b.Reserved, err = parseDecimal(reserved); err != nil {
			return nil, err
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AppendLedgerEntry дописывает запись леджера, заполняя id и created_at.
func (r *PostgresRepository) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, currency, delta, reason, ref_type, ref_id, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		e.UserID, string(e.Currency), e.Delta, string(e.Reason), e.RefType, e.RefID, e.Note,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetLedgerEntriesByUser возвращает записи леджера пользователя по валюте в порядке добавления.
func (r *PostgresRepository) GetLedgerEntriesByUser(ctx context.Context, userID int64, currency model.Currency) ([]model.LedgerEntry, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT id, delta::text, reason, ref_type, ref_id, note, created_at
		 FROM ledger_entries
		 WHERE user_id = $1 AND currency = $2
		 ORDER BY id`,
		userID, string(currency),
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	defer rows.Close()

	var res []model.LedgerEntry
	for rows.Next() {
		e := model.LedgerEntry{UserID: userID, Currency: currency}
		var delta, reason string
		if err := rows.Scan(&e.ID, &delta, &reason, &e.RefType, &e.RefID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.Delta, err = parseDecimal(delta); err != nil {
			return nil, err
		}
		e.Reason = model.Reason(reason)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// InsertDeposit сохраняет депозит. Уникальность tx_hash проверяется ограничением таблицы:
// при повторе возвращается model.ErrDuplicate, транзакция остаётся пригодной.
func (r *PostgresRepository) InsertDeposit(ctx context.Context, d *model.Deposit) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO deposits (user_id, currency, amount, tx_hash, comment_payload, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tx_hash) DO NOTHING
		 RETURNING id, received_at`,
		d.UserID, string(d.Currency), d.Amount, d.TxHash, d.CommentPayload, string(d.Status),
	).Scan(&d.ID, &d.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: tx_hash %s", model.ErrDuplicate, d.TxHash)
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

// GetDepositByTxHash возвращает депозит по хешу транзакции.
func (r *PostgresRepository) GetDepositByTxHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	d := model.Deposit{TxHash: txHash}
	var amount, cur, status string
	err := r.q(ctx).QueryRow(ctx,
		`SELECT id, user_id, currency, amount::text, comment_payload, status, received_at
		 FROM deposits
		 WHERE tx_hash = $1`,
		txHash,
	).Scan(&d.ID, &d.UserID, &cur, &amount, &d.CommentPayload, &status, &d.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: deposit %s", model.ErrNotFound, txHash)
		}
		return nil, fmt.Errorf("get deposit: %w", err)
	}

	if d.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	d.Currency = model.Currency(cur)
	d.Status = model.DepositStatus(status)
	return &d, nil
}

// InsertWithdrawal сохраняет заявку на вывод.
func (r *PostgresRepository) InsertWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO withdrawals (user_id, currency, amount, destination_address, status, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		w.UserID, string(w.Currency), w.Amount, w.DestinationAddress, string(w.Status), w.TxHash,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetWithdrawalsByUser возвращает заявки пользователя, новые первыми.
func (r *PostgresRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT id, currency, amount::text, destination_address, status, tx_hash, created_at
		 FROM withdrawals
		 WHERE user_id = $1
		 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w := model.Withdrawal{UserID: userID}
		var cur, amount, status string
		if err := rows.Scan(&w.ID, &cur, &amount, &w.DestinationAddress, &status, &w.TxHash, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		if w.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		w.Currency = model.Currency(cur)
		w.Status = model.WithdrawalStatus(status)
		res = append(res, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
