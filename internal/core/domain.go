package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Cash          PaymentMethod = "cash"
	CreditCard    PaymentMethod = "credit_card"
	DebitCard     PaymentMethod = "debit_card"
	BankTransfer  PaymentMethod = "bank_transfer"
	DigitalWallet PaymentMethod = "digital_wallet"
	OtherPayment  PaymentMethod = "other"
)

const (
	Daily   RecurringFrequency = "daily"
	Weekly  RecurringFrequency = "weekly"
	Monthly RecurringFrequency = "monthly"
	Yearly  RecurringFrequency = "yearly"
)

const (
	DefaultCategoryColor = "#3B82F6"
	DefaultCategoryIcon  = "category"

	MaxDescriptionLen  = 200
	MaxNotesLen        = 500
	MaxCategoryNameLen = 50
)

type (
	TransactionType    string
	PaymentMethod      string
	RecurringFrequency string

	Money struct {
		Cents int64
	}

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Category struct {
		ID        string
		UserID    string
		Name      string
		Type      TransactionType
		Color     string
		Icon      string
		IsActive  bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID                 string
		UserID             string
		CategoryID         string
		Description        string
		Amount             Money
		Type               TransactionType
		Date               time.Time
		Notes              string
		Tags               []string
		PaymentMethod      PaymentMethod
		IsRecurring        bool
		RecurringFrequency RecurringFrequency
		LastRecurredAt     time.Time
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}
)

var (
	// Field-level validation failures.
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrEmptyDescription    = errors.New("description is required")
	ErrDescriptionTooLong  = errors.New("description cannot exceed 200 characters")
	ErrNotesTooLong        = errors.New("notes cannot exceed 500 characters")
	ErrInvalidType         = errors.New("type must be either income or expense")
	ErrEmptyCategoryName   = errors.New("category name is required")
	ErrCategoryNameTooLong = errors.New("category name cannot exceed 50 characters")
	ErrInvalidColor        = errors.New("color must be a valid hex color code")
	ErrInvalidPayment      = errors.New("unknown payment method")
	ErrMissingFrequency    = errors.New("recurring frequency is required for recurring transactions")
	ErrInvalidFrequency    = errors.New("unknown recurring frequency")
	ErrZeroDate            = errors.New("date is required")
	ErrEmptyName           = errors.New("name is required")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters")

	// Cross-entity rule violations and store-level outcomes.
	ErrCategoryNotFound   = errors.New("category not found or does not belong to user")
	ErrTypeMismatch       = errors.New("transaction type must match category type")
	ErrDuplicateCategory  = errors.New("category with this name and type already exists")
	ErrCategoryInUse      = errors.New("category has associated transactions")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, CreditCard, DebitCard, BankTransfer, DigitalWallet, OtherPayment:
		return true
	}
	return false
}

func (f RecurringFrequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if !emailRe.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if len(name) > MaxCategoryNameLen {
		return ErrCategoryNameTooLong
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if c.Color != "" && !hexColorRe.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

// Validate checks the transaction's own fields. Cross-entity rules
// (category ownership and type agreement) are checked by ValidateTransaction.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if len(t.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	if t.PaymentMethod != "" && !t.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	if t.IsRecurring {
		if t.RecurringFrequency == "" {
			return ErrMissingFrequency
		}
		if !t.RecurringFrequency.Valid() {
			return ErrInvalidFrequency
		}
	} else if t.RecurringFrequency != "" && !t.RecurringFrequency.Valid() {
		return ErrInvalidFrequency
	}
	return nil
}

// ValidateTransaction applies the consistency rules that must hold before a
// transaction is persisted. category is the result of an owner-scoped lookup;
// nil means no category with that id belongs to the transaction's user. The
// check has no side effects: the caller persists only on a nil return.
func ValidateTransaction(t Transaction, category *Category) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if category == nil {
		return ErrCategoryNotFound
	}
	if category.Type != t.Type {
		return ErrTypeMismatch
	}
	return nil
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping empties.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
