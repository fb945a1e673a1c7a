package utils

import (
	"net/url"
	"testing"
)

func TestHashURLStable(t *testing.T) {
	a := HashURL("https://example.com/a.jpg")
	b := HashURL("https://example.com/a.jpg")
	if a != b {
		t.Errorf("HashURL not stable: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len(HashURL) = %d; want 64", len(a))
	}
	if a == HashURL("https://example.com/b.jpg") {
		t.Error("different URLs hashed to the same key")
	}
}

func TestToAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://www.pistonheads.com/buy/search")
	tests := []struct {
		rel  string
		want string
	}{
		{"/buy/listing/123", "https://www.pistonheads.com/buy/listing/123"},
		{" /buy/listing/7 ", "https://www.pistonheads.com/buy/listing/7"},
		{"https://cdn.example.com/x.jpg", "https://cdn.example.com/x.jpg"},
	}
	for _, tt := range tests {
		got, err := ToAbsoluteURL(base, tt.rel)
		if err != nil {
			t.Fatalf("ToAbsoluteURL(%q): %v", tt.rel, err)
		}
		if got != tt.want {
			t.Errorf("ToAbsoluteURL(%q) = %q; want %q", tt.rel, got, tt.want)
		}
	}
}

func TestNormalizeAndFold(t *testing.T) {
	tests := []struct {
		in, norm, fold string
	}{
		{"  Ford   Fiesta\n1.2 ", "Ford Fiesta 1.2", "ford fiesta 1.2"},
		{"", "", ""},
		{"\t£1,995 ", "£1,995", "£1,995"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.norm {
			t.Errorf("NormalizeText(%q) = %q; want %q", tt.in, got, tt.norm)
		}
		if got := FoldText(tt.in); got != tt.fold {
			t.Errorf("FoldText(%q) = %q; want %q", tt.in, got, tt.fold)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a very long listing title", 10, "a very ..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q; want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestUserAgentsRotate(t *testing.T) {
	u := NewUserAgents("a", "b")
	got := []string{u.Next(), u.Next(), u.Next()}
	want := []string{"a", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Next() #%d = %q; want %q", i, got[i], want[i])
		}
	}
	if NewUserAgents().Next() == "" {
		t.Error("default rotator returned empty agent")
	}
}
