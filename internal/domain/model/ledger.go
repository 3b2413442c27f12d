package model

import "time"

// EntryType classifies a ledger entry. Trial grants and purchases carry a
// deterministic source key and are deduplicated; consumption entries each get
// a fresh key so legitimate concurrent deductions all apply.
type EntryType string

const (
	EntryTypeTrialGrant        EntryType = "trial_grant"
	EntryTypePurchase          EntryType = "purchase"
	EntryTypeGenerationConsume EntryType = "generation_consumption"
	EntryTypeConceptConsume    EntryType = "concept_consumption"
	EntryTypeRefund            EntryType = "refund"
)

// RequiresUniqueSourceKey reports whether entries of this type must be
// deduplicated on their source key.
func (t EntryType) RequiresUniqueSourceKey() bool {
	return t == EntryTypeTrialGrant || t == EntryTypePurchase
}

// LedgerEntry is one immutable row of the append-only transaction log.
// Amount is signed: positive entries credit the balance, negative debit it.
type LedgerEntry struct {
	ID           string // ULID
	UserID       string
	Amount       int64
	Type         EntryType
	SourceKey    string                 // idempotency token, e.g. "razorpay_order_<id>"
	Metadata     map[string]interface{} // stored as JSONB
	BalanceAfter int64                  // balance resulting from this entry
	CreatedAt    time.Time
}

// Balance is the current credit position of a single user. It is created
// implicitly on the first grant and only ever mutated through the ledger.
type Balance struct {
	UserID    string
	Credits   int64 // never negative
	UpdatedAt time.Time
}
