package usecase

import (
	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain/model"
)

// creditResolver maps a package id to a credit amount. Resolution order:
// the "credits_<name>_<count>" pattern, then the configured package table,
// then the smallest configured package as a bounded, logged fallback so a
// pricing misconfiguration cannot silently zero out a paid purchase.
type creditResolver struct {
	packages []model.CreditPackage
	log      *zerolog.Logger
}

func newCreditResolver(packages []model.CreditPackage, logger *zerolog.Logger) *creditResolver {
	return &creditResolver{packages: packages, log: logger}
}

func (r *creditResolver) Resolve(packageID string) int64 {
	credits, fallback := ResolveCredits(r.packages, packageID)
	if fallback {
		r.log.Warn().
			Str("package_id", packageID).
			Int64("credits", credits).
			Msg("unknown package id, falling back to smallest package")
	}
	return credits
}

// ResolveCredits maps a package id to credits; the second return reports that
// the bounded smallest-package fallback was used.
func ResolveCredits(packages []model.CreditPackage, packageID string) (int64, bool) {
	if n, ok := model.ParsePackageCredits(packageID); ok {
		return n, false
	}
	for _, p := range packages {
		if p.ID == packageID {
			return p.Credits, false
		}
	}
	var min int64
	for _, p := range packages {
		if min == 0 || p.Credits < min {
			min = p.Credits
		}
	}
	return min, true
}

// Find finds a configured package by id.
func (r *creditResolver) Find(packageID string) (model.CreditPackage, bool) {
	for _, p := range r.packages {
		if p.ID == packageID {
			return p, true
		}
	}
	return model.CreditPackage{}, false
}

