// Package memory содержит хранилище в памяти с теми же гарантиями транзакций, что и PostgreSQL-реализация.
// Транзакции сериализуются одним мьютексом, откат восстанавливает снимок состояния.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

type txKey struct{}

type balanceKey struct {
	userID   int64
	currency model.Currency
}

type state struct {
	users       map[int64]model.User
	balances    map[balanceKey]model.Balance
	ledger      []model.LedgerEntry
	deposits    []model.Deposit
	depositKeys map[string]struct{}
	withdrawals []model.Withdrawal
	contracts   map[int64]model.FuturesContract
	markets     map[int64]model.Market
	gifts       map[int64]model.Gift
	expiries    map[int64]model.Expiry
	seq         map[string]int64
}

func newState() *state {
	return &state{
		users:       make(map[int64]model.User),
		balances:    make(map[balanceKey]model.Balance),
		depositKeys: make(map[string]struct{}),
		contracts:   make(map[int64]model.FuturesContract),
		markets:     make(map[int64]model.Market),
		gifts:       make(map[int64]model.Gift),
		expiries:    make(map[int64]model.Expiry),
		seq:         make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.ledger = append([]model.LedgerEntry(nil), s.ledger...)
	c.deposits = append([]model.Deposit(nil), s.deposits...)
	for k := range s.depositKeys {
		c.depositKeys[k] = struct{}{}
	}
	c.withdrawals = append([]model.Withdrawal(nil), s.withdrawals...)
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.markets {
		c.markets[k] = v
	}
	for k, v := range s.gifts {
		c.gifts[k] = v
	}
	for k, v := range s.expiries {
		c.expiries[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// reserve сдвигает последовательность, чтобы явно заданный id не выдался повторно.
func (s *state) reserve(table string, id int64) {
	if id > s.seq[table] {
		s.seq[table] = id
	}
}

func (s *state) ensureGift(id int64, name string) int64 {
	if id == 0 {
		for _, g := range s.gifts {
			if g.Name == name {
				return g.ID
			}
		}
		id = s.next("gifts")
	}
	if _, ok := s.gifts[id]; !ok {
		s.reserve("gifts", id)
		s.gifts[id] = model.Gift{ID: id, Name: name, IsActive: true}
	}
	return id
}

func (s *state) ensureExpiry(id int64, days int) int64 {
	if id == 0 {
		for _, e := range s.expiries {
			if e.Days == days {
				return e.ID
			}
		}
		id = s.next("expiries")
	}
	if _, ok := s.expiries[id]; !ok {
		s.reserve("expiries", id)
		s.expiries[id] = model.Expiry{ID: id, Days: days, IsActive: true}
	}
	return id
}

// market дополняет рынок флагами и атрибутами его подарка и экспирации.
func (s *state) market(m model.Market) model.Market {
	g := s.gifts[m.GiftID]
	e := s.expiries[m.ExpiryID]
	m.GiftName, m.GiftActive = g.Name, g.IsActive
	m.ExpiryDays, m.ExpiryActive = e.Days, e.IsActive
	return m
}

// Store хранит все сущности в памяти процесса.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithTransaction выполняет fn под эксклюзивной блокировкой хранилища. При ошибке или панике состояние откатывается.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock захватывает мьютекс, если вызов не находится внутри транзакции.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Close ничего не делает и нужен для совместимости с PostgreSQL-хранилищем.
func (s *Store) Close() error {
	return nil
}

// Ping всегда успешен: хранилище в памяти доступно, пока жив процесс.
func (s *Store) Ping(context.Context) error {
	return nil
}

// AddUser регистрирует пользователя и возвращает его идентификатор.
func (s *Store) AddUser(ctx context.Context, telegramUserID string) (int64, error) {
	defer s.lock(ctx)()

	for _, u := range s.st.users {
		if u.TelegramUserID == telegramUserID {
			return 0, fmt.Errorf("%w: telegram user %s", model.ErrDuplicate, telegramUserID)
		}
	}
	id := s.st.next("users")
	s.st.users[id] = model.User{ID: id, TelegramUserID: telegramUserID, CreatedAt: s.now()}
	return id, nil
}

// UserExists сообщает, зарегистрирован ли пользователь.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	defer s.lock(ctx)()

	_, ok := s.st.users[userID]
	return ok, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Store) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	defer s.lock(ctx)()

	u, ok := s.st.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, userID)
	}
	return &u, nil
}

// SetUserWallet привязывает кошелёк пользователя; nil отвязывает.
func (s *Store) SetUserWallet(ctx context.Context, userID int64, address *string) (*model.User, error) {
	defer s.lock(ctx)()

	u, ok := s.st.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, userID)
	}
	u.ConnectedTONAddress = nil
	if address != nil {
		a := *address
		u.ConnectedTONAddress = &a
	}
	s.st.users[userID] = u
	return &u, nil
}

// GetBalanceForUpdate возвращает копию строки баланса, создавая нулевую при первом обращении.
func (s *Store) GetBalanceForUpdate(ctx context.Context, userID int64, currency model.Currency) (*model.Balance, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("get balance for update: transaction required")
	}

	key := balanceKey{userID: userID, currency: currency}
	b, ok := s.st.balances[key]
	if !ok {
		b = model.Balance{UserID: userID, Currency: currency, Available: decimal.Zero, Reserved: decimal.Zero}
		s.st.balances[key] = b
	}
	return &b, nil
}

// SaveBalance сохраняет строку баланса. Отрицательные суммы отклоняются, как CHECK-ограничение в PostgreSQL.
func (s *Store) SaveBalance(ctx context.Context, b *model.Balance) error {
	defer s.lock(ctx)()

	if b.Available.IsNegative() || b.Reserved.IsNegative() {
		return fmt.Errorf("save balance: negative amount for user %d %s", b.UserID, b.Currency)
	}
	s.st.balances[balanceKey{userID: b.UserID, currency: b.Currency}] = *b
	return nil
}

// GetBalancesByUser возвращает все строки балансов пользователя.
func (s *Store) GetBalancesByUser(ctx context.Context, userID int64) ([]model.Balance, error) {
	defer s.lock(ctx)()

	var res []model.Balance
	for k, b := range s.st.balances {
		if k.userID == userID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Currency < res[j].Currency })
	return res, nil
}

// AppendLedgerEntry дописывает запись в журнал, присваивая идентификатор и время.
func (s *Store) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	defer s.lock(ctx)()

	e.ID = s.st.next("ledger_entries")
	e.CreatedAt = s.now()
	s.st.ledger = append(s.st.ledger, *e)
	return nil
}

// GetLedgerEntriesByUser возвращает записи леджера пользователя по валюте в порядке добавления.
func (s *Store) GetLedgerEntriesByUser(ctx context.Context, userID int64, currency model.Currency) ([]model.LedgerEntry, error) {
	defer s.lock(ctx)()

	var res []model.LedgerEntry
	for _, e := range s.st.ledger {
		if e.UserID == userID && e.Currency == currency {
			res = append(res, e)
		}
	}
	return res, nil
}

// InsertDeposit сохраняет депозит. Повтор tx_hash возвращает model.ErrDuplicate без изменений.
func (s *Store) InsertDeposit(ctx context.Context, d *model.Deposit) error {
	defer s.lock(ctx)()

	if _, ok := s.st.depositKeys[d.TxHash]; ok {
		return fmt.Errorf("%w: tx_hash %s", model.ErrDuplicate, d.TxHash)
	}
	d.ID = s.st.next("deposits")
	d.ReceivedAt = s.now()
	s.st.depositKeys[d.TxHash] = struct{}{}
	s.st.deposits = append(s.st.deposits, *d)
	return nil
}

// GetDepositByTxHash возвращает депозит по хешу транзакции.
func (s *Store) GetDepositByTxHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	defer s.lock(ctx)()

	for _, d := range s.st.deposits {
		if d.TxHash == txHash {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: deposit %s", model.ErrNotFound, txHash)
}

// InsertWithdrawal сохраняет заявку на вывод.
func (s *Store) InsertWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	defer s.lock(ctx)()

	w.ID = s.st.next("withdrawals")
	w.CreatedAt = s.now()
	s.st.withdrawals = append(s.st.withdrawals, *w)
	return nil
}

// GetWithdrawalsByUser возвращает заявки пользователя, новые первыми.
func (s *Store) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	defer s.lock(ctx)()

	var res []model.Withdrawal
	for i := len(s.st.withdrawals) - 1; i >= 0; i-- {
		if s.st.withdrawals[i].UserID == userID {
			res = append(res, s.st.withdrawals[i])
		}
	}
	return res, nil
}

// InsertContract сохраняет новый фьючерсный контракт.
func (s *Store) InsertContract(ctx context.Context, c *model.FuturesContract) error {
	defer s.lock(ctx)()

	c.ID = s.st.next("futures_contracts")
	c.CreatedAt = s.now()
	s.st.contracts[c.ID] = *c
	return nil
}

// GetContract возвращает контракт по идентификатору.
func (s *Store) GetContract(ctx context.Context, id int64) (*model.FuturesContract, error) {
	defer s.lock(ctx)()

	c, ok := s.st.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: contract %d", model.ErrNotFound, id)
	}
	return &c, nil
}

// GetContractForUpdate возвращает контракт внутри транзакции.
func (s *Store) GetContractForUpdate(ctx context.Context, id int64) (*model.FuturesContract, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("get contract for update: transaction required")
	}
	return s.GetContract(ctx, id)
}

// UpdateContract сохраняет изменённый контракт.
func (s *Store) UpdateContract(ctx context.Context, c *model.FuturesContract) error {
	defer s.lock(ctx)()

	if _, ok := s.st.contracts[c.ID]; !ok {
		return fmt.Errorf("%w: contract %d", model.ErrNotFound, c.ID)
	}
	s.st.contracts[c.ID] = *c
	return nil
}

// GetContractsByStatus возвращает контракты в указанном статусе по возрастанию идентификатора.
func (s *Store) GetContractsByStatus(ctx context.Context, status model.ContractStatus) ([]model.FuturesContract, error) {
	defer s.lock(ctx)()

	var res []model.FuturesContract
	for _, c := range s.st.contracts {
		if c.Status == status {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// AddMarket регистрирует рынок справочника. Отсутствующие подарок и экспирация создаются включёнными.
func (s *Store) AddMarket(ctx context.Context, m model.Market) (int64, error) {
	defer s.lock(ctx)()

	m.GiftID = s.st.ensureGift(m.GiftID, m.GiftName)
	m.ExpiryID = s.st.ensureExpiry(m.ExpiryID, m.ExpiryDays)
	m.ID = s.st.next("markets")
	s.st.markets[m.ID] = m
	return m.ID, nil
}

// GetMarket возвращает рынок по идентификатору.
func (s *Store) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	defer s.lock(ctx)()

	m, ok := s.st.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %d", model.ErrNotFound, id)
	}
	m = s.st.market(m)
	return &m, nil
}

// GetMarkets возвращает все рынки по возрастанию идентификатора.
func (s *Store) GetMarkets(ctx context.Context) ([]model.Market, error) {
	defer s.lock(ctx)()

	res := make([]model.Market, 0, len(s.st.markets))
	for _, m := range s.st.markets {
		res = append(res, s.st.market(m))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// SetMarketActive включает или выключает рынок.
func (s *Store) SetMarketActive(ctx context.Context, id int64, active bool) (*model.Market, error) {
	defer s.lock(ctx)()

	m, ok := s.st.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %d", model.ErrNotFound, id)
	}
	m.IsActive = active
	s.st.markets[id] = m
	m = s.st.market(m)
	return &m, nil
}

// SetGiftActive включает или выключает подарок.
func (s *Store) SetGiftActive(ctx context.Context, id int64, active bool) (*model.Gift, error) {
	defer s.lock(ctx)()

	g, ok := s.st.gifts[id]
	if !ok {
		return nil, fmt.Errorf("%w: gift %d", model.ErrNotFound, id)
	}
	g.IsActive = active
	s.st.gifts[id] = g
	return &g, nil
}

// SetExpiryActive включает или выключает экспирацию.
func (s *Store) SetExpiryActive(ctx context.Context, id int64, active bool) (*model.Expiry, error) {
	defer s.lock(ctx)()

	e, ok := s.st.expiries[id]
	if !ok {
		return nil, fmt.Errorf("%w: expiry %d", model.ErrNotFound, id)
	}
	e.IsActive = active
	s.st.expiries[id] = e
	return &e, nil
}

// UpdateMarketPrices выставляет цену в TON всем рынкам подарка и возвращает число обновлённых рынков.
func (s *Store) UpdateMarketPrices(ctx context.Context, giftName string, priceTON decimal.Decimal) (int, error) {
	defer s.lock(ctx)()

	n := 0
	for id, m := range s.st.markets {
		if s.st.gifts[m.GiftID].Name == giftName {
			p := priceTON
			m.PriceTON = &p
			s.st.markets[id] = m
			n++
		}
	}
	return n, nil
}
