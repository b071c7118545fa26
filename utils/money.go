package utils

import (
	"fmt"
	"strconv"
)

// Amounts are integer minor units throughout (CLP has no decimals, BRL
// centavos come pre-scaled from the backend). Nothing here is authoritative
// for charging: display formatting only.

func ItemTotal(pricePerParticipant int64, numParticipants int) int64 {
	return pricePerParticipant * int64(numParticipants)
}

func FormatAmount(amount int64, currency string) string {
	switch currency {
	case "CLP":
		return "$" + groupThousands(amount) + " CLP"
	case "BRL":
		sign := ""
		if amount < 0 {
			sign = "-"
			amount = -amount
		}
		return fmt.Sprintf("R$ %s%d,%02d", sign, amount/100, amount%100)
	default:
		return strconv.FormatInt(amount, 10) + " " + currency
	}
}

func groupThousands(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "." + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
