package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "Without cause",
			err:  New(ErrCodeNotWaiting, "queue entry is not waiting"),
			want: "NOT_WAITING: queue entry is not waiting",
		},
		{
			name: "With cause",
			err:  Wrap(stderrors.New("connection refused"), ErrCodeInternalError, "failed to list queue"),
			want: "INTERNAL_ERROR: failed to list queue (connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "Nil", err: nil, want: ""},
		{name: "Plain error", err: stderrors.New("boom"), want: ErrCodeInternalError},
		{name: "App error", err: New(ErrCodeAcceptanceExpired, "expired"), want: ErrCodeAcceptanceExpired},
		{
			name: "Wrapped app error",
			err:  fmt.Errorf("accept: %w", New(ErrCodeNotParticipant, "not yours")),
			want: ErrCodeNotParticipant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, ErrCodeInternalError, "failed to create match")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
	if !Is(err, ErrCodeInternalError) {
		t.Error("Is() should match the wrapper code")
	}
	if Is(nil, ErrCodeInternalError) {
		t.Error("Is(nil) should be false")
	}
}
