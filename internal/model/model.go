// Package model содержит доменные сущности кастодиального леджера и фьючерсов на подарки.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency описывает валюту баланса.
type Currency string

const (
	CurrencyTON  Currency = "TON"
	CurrencyUSDT Currency = "USDT"
)

// BaseCurrency используется, когда валюта не указана или неизвестна.
const BaseCurrency = CurrencyTON

// SupportedCurrencies возвращает список поддерживаемых валют в порядке отображения.
func SupportedCurrencies() []Currency {
	return []Currency{CurrencyTON, CurrencyUSDT}
}

// Valid сообщает, поддерживается ли валюта.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyTON, CurrencyUSDT:
		return true
	}
	return false
}

// ParseCurrency разбирает код валюты без учёта регистра. Неизвестная валюта считается ошибкой ввода.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", InvalidInputf("unsupported currency %q", raw)
	}
	return c, nil
}

// NormalizeCurrency приводит код валюты к поддерживаемому, подставляя BaseCurrency для пустых и неизвестных значений.
func NormalizeCurrency(raw string) Currency {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return BaseCurrency
	}
	return c
}

// Reason описывает причину изменения баланса в леджере.
type Reason string

const (
	ReasonDeposit       Reason = "deposit"
	ReasonTrade         Reason = "trade"
	ReasonWithdraw      Reason = "withdraw"
	ReasonAdjustment    Reason = "adjustment"
	ReasonFuturesMargin Reason = "futures_margin"
	ReasonFuturesSettle Reason = "futures_settle"
)

// Valid сообщает, входит ли причина в закрытый список.
func (r Reason) Valid() bool {
	switch r {
	case ReasonDeposit, ReasonTrade, ReasonWithdraw, ReasonAdjustment, ReasonFuturesMargin, ReasonFuturesSettle:
		return true
	}
	return false
}

// Типы ссылок, которыми записи леджера привязываются к исходной сущности.
const (
	RefTypeDeposit         = "deposit"
	RefTypeWithdrawal      = "withdrawal"
	RefTypeFuturesContract = "futures_contract"
	RefTypeAdminAdjustment = "admin_adjustment"
)

// Ref указывает на сущность, породившую запись леджера.
type Ref struct {
	Type string
	ID   *int64
}

// RefTo создаёт ссылку на сущность с идентификатором.
func RefTo(refType string, id int64) Ref {
	return Ref{Type: refType, ID: &id}
}

// User представляет пользователя платформы.
type User struct {
	ID                  int64
	TelegramUserID      string
	// ConnectedTONAddress — кошелёк, привязанный пользователем; nil, если не привязан.
	ConnectedTONAddress *string
	CreatedAt           time.Time
}

// Balance содержит доступную и зарезервированную сумму пользователя в одной валюте.
type Balance struct {
	UserID    int64
	Currency  Currency
	Available decimal.Decimal
	Reserved  decimal.Decimal
}

// Total возвращает сумму доступных и зарезервированных средств.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Reserved)
}

// LedgerEntry описывает неизменяемую запись журнала изменений баланса.
type LedgerEntry struct {
	ID        int64
	UserID    int64
	Currency  Currency
	Delta     decimal.Decimal
	Reason    Reason
	RefType   string
	RefID     *int64
	Note      string
	CreatedAt time.Time
}

// DepositStatus описывает статус входящего платежа.
type DepositStatus string

const (
	DepositStatusReceived DepositStatus = "received"
	DepositStatusCredited DepositStatus = "credited"
	DepositStatusRejected DepositStatus = "rejected"
)

// Deposit описывает входящую on-chain транзакцию. TxHash глобально уникален.
type Deposit struct {
	ID             int64
	UserID         *int64
	Currency       Currency
	Amount         decimal.Decimal
	TxHash         string
	CommentPayload string
	Status         DepositStatus
	ReceivedAt     time.Time
}

// WithdrawalStatus описывает статус заявки на вывод.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal описывает заявку пользователя на вывод средств.
type Withdrawal struct {
	ID                 int64
	UserID             int64
	Currency           Currency
	Amount             decimal.Decimal
	DestinationAddress string
	Status             WithdrawalStatus
	TxHash             *string
	CreatedAt          time.Time
}

// Market описывает рынок фьючерсов на подарок с фиксированной экспирацией.
// IsActive относится к самому рынку, GiftActive и ExpiryActive — к его подарку и экспирации.
type Market struct {
	ID           int64
	GiftID       int64
	GiftName     string
	ExpiryID     int64
	ExpiryDays   int
	IsActive     bool
	GiftActive   bool
	ExpiryActive bool
	PriceTON     *decimal.Decimal
	PriceUSDT    *decimal.Decimal
}

// Tradable сообщает, что рынок, его подарок и экспирация включены.
func (m Market) Tradable() bool {
	return m.IsActive && m.GiftActive && m.ExpiryActive
}

// Gift — подарок из справочника. Выключенный подарок закрывает все свои рынки для новых контрактов.
type Gift struct {
	ID       int64
	Name     string
	IsActive bool
}

// Expiry — срок экспирации из справочника.
type Expiry struct {
	ID       int64
	Days     int
	IsActive bool
}

// Price возвращает цену рынка в указанной валюте, если оракул её выставил.
func (m Market) Price(c Currency) (decimal.Decimal, bool) {
	var p *decimal.Decimal
	switch c {
	case CurrencyTON:
		p = m.PriceTON
	case CurrencyUSDT:
		p = m.PriceUSDT
	}
	if p == nil {
		return decimal.Zero, false
	}
	return *p, true
}
