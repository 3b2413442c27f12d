package model

import (
	"strconv"
	"strings"
)

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	ID       string `yaml:"id"`
	Credits  int64  `yaml:"credits"`
	Price    int64  `yaml:"price"` // smallest currency unit
	Currency string `yaml:"currency"`
}

// ParsePackageCredits extracts the credit count from ids of the form
// "credits_<name>_<count>". Returns false when the id does not follow the
// pattern or the count is not a positive integer.
func ParsePackageCredits(packageID string) (int64, bool) {
	parts := strings.Split(packageID, "_")
	if len(parts) < 3 || parts[0] != "credits" {
		return 0, false
	}
	n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
