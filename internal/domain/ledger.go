package domain

import "time"

// Usage categories kept apart in the ledger.
const (
	CategoryChat          = "chat"
	CategorySummarization = "summarization"
)

// Reservation states.
const (
	ReservationReserved   = "reserved"
	ReservationReconciled = "reconciled"
	ReservationExpired    = "expired"
)

// TokenAccount is a user's quota for one billing period ("YYYY-MM", UTC).
// Approval keeps Used+Reserved <= Quota.
type TokenAccount struct {
	ID        string    `json:"-"        gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_account_user_period,priority:1"`
	Period    string    `json:"period"   gorm:"type:varchar(7);not null;uniqueIndex:ux_account_user_period,priority:2"`
	Quota     int64     `json:"quota"    gorm:"not null"`
	Used      int64     `json:"used"     gorm:"not null;default:0"`
	Reserved  int64     `json:"reserved" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for TokenAccount.
func (TokenAccount) TableName() string { return "token_accounts" }

// Remaining is the unreserved balance, never negative.
func (a TokenAccount) Remaining() int64 {
	if r := a.Quota - a.Used - a.Reserved; r > 0 {
		return r
	}
	return 0
}

// TokenReservation is the per-call record. Its primary key is the call id,
// which makes reconciliation exactly-once.
type TokenReservation struct {
	CallID       string     `gorm:"type:varchar(64);primaryKey"`
	UserID       string     `gorm:"type:varchar(64);not null;index:idx_resv_user_period,priority:1"`
	Period       string     `gorm:"type:varchar(7);not null;index:idx_resv_user_period,priority:2"`
	Category     string     `gorm:"type:varchar(16);not null;default:'chat'"`
	Status       string     `gorm:"type:varchar(16);not null;index:idx_resv_status_exp,priority:1"`
	Amount       int64      `gorm:"not null;default:0"`
	InputTokens  int64      `gorm:"not null;default:0"`
	OutputTokens int64      `gorm:"not null;default:0"`
	CreatedAt    time.Time  `gorm:"not null"`
	ExpiresAt    time.Time  `gorm:"not null;index:idx_resv_status_exp,priority:2"`
	SettledAt    *time.Time
}

// TableName returns the database table name for TokenReservation.
func (TokenReservation) TableName() string { return "token_reservations" }

// Period returns the billing period key for t.
func Period(t time.Time) string { return t.UTC().Format("2006-01") }
