package models

import (
	"strconv"
	"strings"
	"time"
)

// Record is the single persisted business-card document. At most one exists
// in the store at any time, under the fixed key "user-card".
type Record struct {
	FullName      string    `json:"fullName"`
	Company       string    `json:"company"`
	CardType      string    `json:"cardType"`
	CardNumber    string    `json:"cardNumber"` // masked display form, never the raw PAN
	Currency      string    `json:"currency"`
	Balance       float64   `json:"balance"`
	ExpiryDate    string    `json:"expiryDate"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	PaymentMethod string    `json:"paymentMethod"`
	EsewaID       string    `json:"esewaId,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Draft is the in-progress, possibly invalid edit buffer for a Record. It
// exists only while a form is open and is never persisted before validation
// passes. Balance stays the raw form string until the validator parses it.
type Draft struct {
	FullName      string `json:"fullName"`
	Company       string `json:"company"`
	CardType      string `json:"cardType"`
	CardNumber    string `json:"cardNumber"`
	Currency      string `json:"currency"`
	Balance       string `json:"balance"`
	ExpiryDate    string `json:"expiryDate"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	EsewaID       string `json:"esewaId"`
	// PaymentActive mirrors whether the payment section of the form is open;
	// it switches on the conditional esewaId requirement.
	PaymentActive bool `json:"paymentActive,omitempty"`
}

// Defaults applied to blank enum fields.
const (
	DefaultCardType = "Business"
	DefaultCurrency = "USD"
	MethodEsewa     = "esewa"
	MethodKhalti    = "khalti"
	MethodConnect   = "connectips"
	MethodNone      = "none"
)

var (
	CardTypes      = []string{"Business", "Personal", "VIP", "Premium", "Executive"}
	Currencies     = []string{"USD", "EUR", "GBP", "JPY", "CAD", "NPR"}
	PaymentMethods = []string{MethodEsewa, MethodKhalti, MethodConnect, MethodNone}
)

func ValidCardType(v string) bool      { return oneOf(CardTypes, v) }
func ValidCurrency(v string) bool      { return oneOf(Currencies, v) }
func ValidPaymentMethod(v string) bool { return oneOf(PaymentMethods, v) }

func oneOf(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// DefaultDraft returns a blank draft with the enum defaults seeded, the
// shape a freshly opened create form starts from.
func DefaultDraft() Draft {
	return Draft{
		CardType:      DefaultCardType,
		Currency:      DefaultCurrency,
		PaymentMethod: MethodEsewa,
	}
}

// DraftFromRecord seeds an edit form from the stored record.
func DraftFromRecord(rec Record) Draft {
	return Draft{
		FullName:      rec.FullName,
		Company:       rec.Company,
		CardType:      rec.CardType,
		CardNumber:    rec.CardNumber,
		Currency:      rec.Currency,
		Balance:       strconv.FormatFloat(rec.Balance, 'f', -1, 64),
		ExpiryDate:    rec.ExpiryDate,
		Email:         rec.Email,
		Phone:         rec.Phone,
		Address:       rec.Address,
		PaymentMethod: rec.PaymentMethod,
		EsewaID:       rec.EsewaID,
	}
}

// ToRecord converts a draft that already passed validation into a Record.
// The card number is taken as-is; masking raw digit input is the caller's
// job, since an already masked value must not be re-fed to the formatter.
func (d Draft) ToRecord(cardNumber string) Record {
	balance, _ := strconv.ParseFloat(strings.TrimSpace(d.Balance), 64)
	rec := Record{
		FullName:      strings.TrimSpace(d.FullName),
		Company:       strings.TrimSpace(d.Company),
		CardType:      d.CardType,
		CardNumber:    cardNumber,
		Currency:      d.Currency,
		Balance:       balance,
		ExpiryDate:    strings.TrimSpace(d.ExpiryDate),
		Email:         strings.TrimSpace(d.Email),
		Phone:         strings.TrimSpace(d.Phone),
		Address:       strings.TrimSpace(d.Address),
		PaymentMethod: d.PaymentMethod,
		EsewaID:       strings.TrimSpace(d.EsewaID),
	}
	if rec.CardType == "" {
		rec.CardType = DefaultCardType
	}
	if rec.Currency == "" {
		rec.Currency = DefaultCurrency
	}
	if rec.PaymentMethod == "" {
		rec.PaymentMethod = MethodEsewa
	}
	return rec
}
