package authorize

import "testing"

func TestCheck(t *testing.T) {
	recipients := []string{"alice@example.com", "bob@example.com"}

	tests := []struct {
		name       string
		sender     string
		recipients []string
		reject     bool
		want       bool
	}{
		{"member accepted", "alice@example.com", recipients, true, true},
		{"member accepted case-insensitive", "ALICE@example.com", recipients, true, true},
		{"non-member rejected", "eve@evil.example", recipients, true, false},
		{"non-member accepted when rejection disabled", "eve@evil.example", recipients, false, true},
		{"empty sender rejected", "", recipients, true, false},
		{"empty sender accepted when rejection disabled", "", recipients, false, true},
		{"empty recipient set rejects everything", "alice@example.com", nil, true, false},
		{"no suffix matching", "alice@example.com.evil.example", recipients, true, false},
		{"no substring matching", "lice@example.com", recipients, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Check(tt.sender, tt.recipients, tt.reject)
			if d.Accepted != tt.want {
				t.Errorf("Check(%q) accepted = %v, want %v", tt.sender, d.Accepted, tt.want)
			}
			if !d.Accepted && d.Reason == "" {
				t.Error("rejection without a reason")
			}
		})
	}
}
