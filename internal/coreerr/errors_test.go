package coreerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrorsWrapWithErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("reading keydb: %w", ErrStoreIO)
	if !errors.Is(wrapped, ErrStoreIO) {
		t.Error("wrapped ErrStoreIO should satisfy errors.Is")
	}
}

func TestNoMatchingKeyErrorUnwrapsWithErrorsAs(t *testing.T) {
	var err error = &NoMatchingKeyError{KeyIDs: []KeyRef{{Type: "openpgp", ID: "ABCD1234"}}}

	var target *NoMatchingKeyError
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to match *NoMatchingKeyError")
	}
	if len(target.KeyIDs) != 1 || target.KeyIDs[0].ID != "ABCD1234" {
		t.Errorf("KeyIDs = %v, want one entry with ID ABCD1234", target.KeyIDs)
	}
}

func TestNotForYouErrorMessageCarriesRecipientName(t *testing.T) {
	err := &NotForYouError{RecipientName: "bob"}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
	if got := err.Error(); !strings.Contains(got, "bob") {
		t.Errorf("Error() = %q, want it to contain the recipient name %q", got, "bob")
	}
}
