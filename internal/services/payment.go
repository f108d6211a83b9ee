package services

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultPaymentMethods are the manual-approval wallets enabled out of the box.
var DefaultPaymentMethods = []string{"esewa", "khalti", "imepay"}

// PaymentMethods is an allow-list of payment tags. Tags are compared after
// Unicode case folding, so "eSewa" and "ESEWA" both match "esewa".
type PaymentMethods struct {
	allowed map[string]struct{}
	order   []string
}

// NewPaymentMethods builds an allow-list from tags. Blank tags are ignored.
func NewPaymentMethods(tags ...string) *PaymentMethods {
	pm := &PaymentMethods{allowed: make(map[string]struct{}, len(tags))}
	for _, t := range tags {
		n := foldTag(t)
		if n == "" {
			continue
		}
		if _, dup := pm.allowed[n]; dup {
			continue
		}
		pm.allowed[n] = struct{}{}
		pm.order = append(pm.order, n)
	}
	return pm
}

func foldTag(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Normalize returns the canonical form of tag, or ErrInvalidPaymentMethod.
func (pm *PaymentMethods) Normalize(tag string) (string, error) {
	n := foldTag(tag)
	if _, ok := pm.allowed[n]; !ok || n == "" {
		return "", ErrInvalidPaymentMethod
	}
	return n, nil
}

// List returns the enabled tags in configuration order.
func (pm *PaymentMethods) List() []string {
	return append([]string(nil), pm.order...)
}
