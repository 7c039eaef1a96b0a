// Package refid implements the ledger entry identifier grammar and the
// allocation policies built on top of it.
//
// Three id families exist:
//
//	TXN-<9 digits>          system-generated entry ids
//	<METHOD>-<body>         caller-supplied payment references
//	RFND-<6 digits>         refund entry ids, derived from the original id
//
// Refund ids reuse the first six-digit run of the original id's body so a
// refund stays visually traceable to the entry it reverses; when no such run
// exists the token is random. Derivation is an explicit grammar here, never
// incidental string slicing at call sites.
package refid

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/netvend-ledger/internal/domain/shared"
)

const (
	systemPrefix = "TXN"
	refundPrefix = "RFND"
	separator    = "-"

	systemTokenDigits = 9
	refundTokenDigits = 6

	// maxAttempts bounds the retry loop against the store when a generated
	// id is already taken
	maxAttempts = 5
)

var (
	referenceBodyPattern = regexp.MustCompile(`^[A-Za-z0-9]{4,24}$`)
	refundTokenPattern   = regexp.MustCompile(`[0-9]{6}`)
)

// ErrAllocationExhausted indicates no free id was found within the bounded
// attempt count
type ErrAllocationExhausted struct {
	Prefix string
}

func (e ErrAllocationExhausted) Error() string {
	return "id allocation exhausted for prefix: " + e.Prefix
}

// Is implements the errors.Is interface for ErrAllocationExhausted
func (e ErrAllocationExhausted) Is(target error) bool {
	t, ok := target.(ErrAllocationExhausted)
	if !ok {
		return false
	}
	return t.Prefix == "" || e.Prefix == t.Prefix
}

// ErrInvalidReference indicates a caller-supplied reference that does not
// match the method's grammar
type ErrInvalidReference struct {
	Reference string
	Method    shared.PaymentMethod
}

func (e ErrInvalidReference) Error() string {
	return fmt.Sprintf("reference %q is not valid for payment method %s", e.Reference, e.Method)
}

// ErrDuplicateReference indicates reuse of an externally supplied reference
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "reference already used: " + e.Reference
}

// Is implements the errors.Is interface for ErrDuplicateReference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	return t.Reference == "" || e.Reference == t.Reference
}

// ExistenceChecker is the slice of the ledger store the allocator needs
type ExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Allocator produces collision-free ledger entry ids
type Allocator struct {
	store ExistenceChecker
	// randInt is swappable in tests; returns a value in [0, n)
	randInt func(n int64) int64
}

// NewAllocator creates an allocator backed by the given store
func NewAllocator(store ExistenceChecker) *Allocator {
	return &Allocator{
		store:   store,
		randInt: rand.Int63n,
	}
}

// SystemID allocates a fresh system-generated id (TXN-xxxxxxxxx), retrying
// against the store up to the bounded attempt count
func (a *Allocator) SystemID(ctx context.Context) (string, error) {
	return a.allocate(ctx, systemPrefix, systemTokenDigits, "")
}

// RefundID derives a refund id from the original entry's id. The token is
// the first six-digit run of the original id's body, falling back to a
// random token, and is still checked for prior existence.
func (a *Allocator) RefundID(ctx context.Context, originalID string) (string, error) {
	return a.allocate(ctx, refundPrefix, refundTokenDigits, DeriveRefundToken(originalID))
}

// Reference validates a caller-supplied reference against the method's
// grammar and rejects prior use. The returned id is the reference itself.
func (a *Allocator) Reference(ctx context.Context, method shared.PaymentMethod, reference string) (string, error) {
	if err := ValidateReference(method, reference); err != nil {
		return "", err
	}

	exists, err := a.store.Exists(ctx, reference)
	if err != nil {
		return "", fmt.Errorf("failed to check reference %s: %w", reference, err)
	}
	if exists {
		return "", ErrDuplicateReference{Reference: reference}
	}

	return reference, nil
}

// allocate tries preferred first (when non-empty), then random tokens, until
// a free id is found or attempts run out
func (a *Allocator) allocate(ctx context.Context, prefix string, digits int, preferred string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		token := preferred
		if attempt > 0 || token == "" {
			token = a.randomToken(digits)
		}

		id := prefix + separator + token
		exists, err := a.store.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check candidate id %s: %w", id, err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", ErrAllocationExhausted{Prefix: prefix}
}

func (a *Allocator) randomToken(digits int) string {
	bound := int64(1)
	for i := 0; i < digits; i++ {
		bound *= 10
	}
	return fmt.Sprintf("%0*d", digits, a.randInt(bound))
}

// DeriveRefundToken extracts the refund token from an entry id: the first
// six-digit run of its body. Returns "" when the id carries no such run.
func DeriveRefundToken(originalID string) string {
	_, body, found := strings.Cut(originalID, separator)
	if !found {
		body = originalID
	}
	return refundTokenPattern.FindString(body)
}

// ValidateReference checks a caller-supplied reference against the method's
// prefix and body grammar: PREFIX-<4..24 alphanumerics>
func ValidateReference(method shared.PaymentMethod, reference string) error {
	prefix, err := method.ReferencePrefix()
	if err != nil {
		return err
	}

	body, ok := strings.CutPrefix(reference, prefix+separator)
	if !ok || !referenceBodyPattern.MatchString(body) {
		return ErrInvalidReference{Reference: reference, Method: method}
	}

	return nil
}

// DefaultReference returns the bare reference scaffold for a method: its
// prefix and the separator, free text to follow
func DefaultReference(method shared.PaymentMethod) (string, error) {
	prefix, err := method.ReferencePrefix()
	if err != nil {
		return "", err
	}
	return prefix + separator, nil
}

// Rebase moves a reference onto a method's prefix. A reference already valid
// for that method is kept as-is; anything else resets to the bare scaffold,
// so switching methods discards the old free text.
func Rebase(reference string, method shared.PaymentMethod) (string, error) {
	if err := ValidateReference(method, reference); err == nil {
		return reference, nil
	}
	return DefaultReference(method)
}
