package automation

import "testing"

func TestNormalizeCron(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"5-field passthrough", "*/5 * * * *", "*/5 * * * *", false},
		{"6-field drops seconds", "30 */5 * * * *", "*/5 * * * *", false},
		{"3-field rejected", "* * *", "", true},
		{"7-field rejected", "1 2 3 4 5 6 7", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NormalizeCron(c.in, nil)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("NormalizeCron(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestNormalizeCronFourFieldAppendsDayOfWeek(t *testing.T) {
	got, err := NormalizeCron("*/5 9 1 *", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "*/5 9 1 * *" {
		t.Fatalf("got %q, want 4-field expression with day-of-week appended", got)
	}
}
