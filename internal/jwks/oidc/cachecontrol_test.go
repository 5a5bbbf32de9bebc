package oidc

import (
	"log/slog"
	"net/http"
	"testing"
)

func TestComputeExpiryDefault(t *testing.T) {
	h := http.Header{}
	got := computeExpiry(1000, h, 300, slog.Default())
	want := int64(1000 + 300*1000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestComputeExpirySmallestPositiveWins(t *testing.T) {
	h := http.Header{}
	h.Add("Cache-Control", "max-age=600, must-revalidate")
	h.Add("Cache-Control", "max-age=120")
	got := computeExpiry(1000, h, 300, slog.Default())
	want := int64(1000 + 120*1000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestComputeExpiryIgnoresNegativeZeroQuotedMalformed(t *testing.T) {
	h := http.Header{}
	h.Add("Cache-Control", `max-age="not-a-number", max-age=0, max-age=-5`)
	got := computeExpiry(1000, h, 300, slog.Default())
	want := int64(1000 + 300*1000)
	if got != want {
		t.Errorf("got %d, want %d (should fall back to default)", got, want)
	}
}

func TestComputeExpiryQuotedValid(t *testing.T) {
	h := http.Header{}
	h.Add("Cache-Control", `max-age="60"`)
	got := computeExpiry(1000, h, 300, slog.Default())
	want := int64(1000 + 60*1000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}
