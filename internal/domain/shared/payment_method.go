package shared

import "errors"

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// PaymentMethod defines the closed set of accepted payment channels.
// Each method owns a fixed reference prefix; references are never built
// by ad hoc string concatenation outside this table.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodGCash PaymentMethod = "GCASH"
	PaymentMethodMaya  PaymentMethod = "MAYA"
)

// referencePrefixes maps each payment method to the prefix its references
// must carry. The prefix is immutable once a method is selected.
var referencePrefixes = map[PaymentMethod]string{
	PaymentMethodCash:  "CASH",
	PaymentMethodGCash: "GCASH",
	PaymentMethodMaya:  "MAYA",
}

// ParsePaymentMethod converts a wire string into a PaymentMethod
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if _, ok := referencePrefixes[m]; !ok {
		return "", ErrUnknownPaymentMethod
	}
	return m, nil
}

// ReferencePrefix returns the fixed reference prefix for the method,
// without the separator
func (m PaymentMethod) ReferencePrefix() (string, error) {
	prefix, ok := referencePrefixes[m]
	if !ok {
		return "", ErrUnknownPaymentMethod
	}
	return prefix, nil
}

// Valid reports whether the method is part of the closed set
func (m PaymentMethod) Valid() bool {
	_, ok := referencePrefixes[m]
	return ok
}
