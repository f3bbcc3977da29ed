package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{invalid("amount", "must be positive"), KindValidation},
		{ErrJobNotFound, KindNotFound},
		{fmt.Errorf("wrapped: %w", ErrJobNoLongerAvailable), KindConflict},
		{ErrPriceAlreadyFinalized, KindConflict},
		{transitionError("assigned", "completed"), KindConflict},
		{ErrLocationNotSet, KindLocationNotSet},
		{fmt.Errorf("%w: nope", ErrForbidden), KindForbidden},
		{errors.New("connection reset"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationError_Field(t *testing.T) {
	err := fmt.Errorf("create: %w", invalid("pincode", "must be 6 digits"))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected a ValidationError in the chain")
	}
	if ve.Field != "pincode" {
		t.Errorf("Field = %q, want pincode", ve.Field)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}
}
