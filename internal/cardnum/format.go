package cardnum

import "strings"

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mask formats raw card-number input as a partially obscured display string:
//
//	0-4 digits  -> the digits as typed
//	5-8 digits  -> "**** " followed by digits 5 onward
//	9-12 digits -> "**** **** " followed by digits 9 onward
//	13+ digits  -> "**** **** **** " followed by digits 13-16; extras dropped
//
// Input must be raw digit-bearing text. Feeding an already masked value back
// in is not supported: the asterisks are stripped with the other non-digits
// and the surviving digits would be masked again.
func Mask(s string) string {
	d := Digits(s)
	switch {
	case len(d) <= 4:
		return d
	case len(d) <= 8:
		return "**** " + d[4:]
	case len(d) <= 12:
		return "**** **** " + d[8:]
	default:
		if len(d) > 16 {
			d = d[:16]
		}
		return "**** **** **** " + d[12:]
	}
}

// Last4 returns the trailing four digits of s, or all of them when fewer.
func Last4(s string) string {
	d := Digits(s)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}
