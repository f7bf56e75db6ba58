package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alovak/cardprofile/profile/models"
)

// Simple "text@text.text" shape; anything stricter belongs to a mail server.
var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Draft checks d against the submission rules and returns a message for
// every failing field. The map is empty iff the draft is acceptable.
// Rules are independent of each other except for esewaId, which is only
// required while the payment section is active and the method is esewa.
// Whitespace-only input counts as absent for every required text field.
func Draft(d models.Draft, paymentActive bool) map[string]string {
	errs := make(map[string]string)

	if blank(d.FullName) {
		errs["fullName"] = "Full name is required"
	}
	if blank(d.Company) {
		errs["company"] = "Company is required"
	}
	if blank(d.CardNumber) {
		errs["cardNumber"] = "Card number is required"
	}

	switch balance := strings.TrimSpace(d.Balance); {
	case balance == "":
		errs["balance"] = "Valid balance is required"
	default:
		v, err := strconv.ParseFloat(balance, 64)
		// ParseFloat accepts "NaN" and "Inf"; neither is a storable balance
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs["balance"] = "Valid balance is required"
		} else if v < 0 {
			errs["balance"] = "Balance must not be negative"
		}
	}

	if blank(d.ExpiryDate) {
		errs["expiryDate"] = "Expiry date is required"
	} else if len(strings.TrimSpace(d.ExpiryDate)) > 5 {
		errs["expiryDate"] = "Expiry date must be at most 5 characters"
	}

	if blank(d.Email) {
		errs["email"] = "Email is required"
	} else if !emailRe.MatchString(strings.TrimSpace(d.Email)) {
		errs["email"] = "Valid email is required"
	}

	if d.CardType != "" && !models.ValidCardType(d.CardType) {
		errs["cardType"] = "Unknown card type"
	}
	if d.Currency != "" && !models.ValidCurrency(d.Currency) {
		errs["currency"] = "Unknown currency"
	}
	if d.PaymentMethod != "" && !models.ValidPaymentMethod(d.PaymentMethod) {
		errs["paymentMethod"] = "Unknown payment method"
	}

	if paymentActive && d.PaymentMethod == models.MethodEsewa && blank(d.EsewaID) {
		errs["esewaId"] = "eSewa ID is required for payment"
	}

	return errs
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
