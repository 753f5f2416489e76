package errors

import "testing"

func TestSentinelWrapping(t *testing.T) {
	err := Wrap(ErrNotFound, "job lookup")
	if !Is(err, ErrNotFound) {
		t.Error("wrapped sentinel should still match with Is")
	}
	if Is(err, ErrInvalidRequest) {
		t.Error("wrapped sentinel should not match a different sentinel")
	}
}

func TestIsNotFoundError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrNotFound, true},
		{"wrapped sentinel", Wrap(ErrNotFound, "fetching job"), true},
		{"string suffix", New("job abc not found"), true},
		{"string prefix", New("not found: job abc"), true},
		{"unrelated", New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNotFoundError(tc.err); got != tc.want {
				t.Errorf("IsNotFoundError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsInsufficientCreditsError(t *testing.T) {
	err := Wrapf(ErrInsufficientCredits, "feature %s", "summarizer")
	if !IsInsufficientCreditsError(err) {
		t.Error("wrapped ErrInsufficientCredits should be detected")
	}
	if IsInsufficientCreditsError(New("some other error")) {
		t.Error("unrelated error should not be detected as insufficient credits")
	}
}
