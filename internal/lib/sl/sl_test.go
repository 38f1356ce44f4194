package sl

import (
	"errors"
	"testing"
)

func TestSecretMasksValue(t *testing.T) {
	a := Secret("key", "0123456789abcdef")
	if got := a.Value.String(); got != "0123...cdef" {
		t.Errorf("Expected masked value, got %q", got)
	}

	short := Secret("key", "abc")
	if got := short.Value.String(); got != "***" {
		t.Errorf("Expected fully masked short value, got %q", got)
	}
}

func TestErr(t *testing.T) {
	if got := Err(errors.New("boom")).Value.String(); got != "boom" {
		t.Errorf("Expected boom, got %q", got)
	}
	if got := Err(nil).Value.String(); got != "" {
		t.Errorf("Expected empty string for nil error, got %q", got)
	}
}
