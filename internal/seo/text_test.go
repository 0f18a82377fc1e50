package seo

import (
	"testing"
	"time"
)

func TestPlainText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"  many\n\n  spaces\tand\ttabs  ", "many spaces and tabs"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"<script>alert(1)</script>visible", "visible"},
		{"Тест <i>кириллицы</i>", "Тест кириллицы"},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords([]string{"Категория:Физика", "Категория:Химия", "Other"}, "Категория:")
	if got != "Физика, Химия, Other" {
		t.Fatalf("unexpected keywords %q", got)
	}

	if got := Keywords(nil, "Категория:"); got != "" {
		t.Fatalf("expected empty keywords, got %q", got)
	}

	if got := Keywords([]string{"Архив/Категория:Физика"}, "Категория:"); got != "Архив/Физика" {
		t.Fatalf("prefix must be removed anywhere in the key, got %q", got)
	}

	if got := Keywords([]string{"Category:A"}, ""); got != "Category:A" {
		t.Fatalf("prefix must be kept when none configured, got %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != "0" {
		t.Fatalf("expected 0 for zero time, got %q", got)
	}

	loc := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2021, time.March, 4, 5, 6, 7, 0, loc)
	if got := FormatDate(ts); got != "2021-03-04T05:06:07+03:00" {
		t.Fatalf("unexpected date %q", got)
	}

	if got := FormatDate(ts.UTC()); got != "2021-03-04T02:06:07+00:00" {
		t.Fatalf("unexpected utc date %q", got)
	}
}

func TestPresent(t *testing.T) {
	for _, v := range []string{"", "0"} {
		if Present(v) {
			t.Fatalf("expected %q to be absent", v)
		}
	}
	for _, v := range []string{"@", "00", "x", " "} {
		if !Present(v) {
			t.Fatalf("expected %q to be present", v)
		}
	}
}

func TestClean(t *testing.T) {
	// "й" as base letter plus combining breve.
	decomposed := "  \u0438\u0306  "
	if got := Clean(decomposed); got != "\u0439" {
		t.Fatalf("expected NFC composed letter, got %q", got)
	}
}
