package users

import "testing"

func TestValidPeriod(t *testing.T) {
	for _, p := range []string{"7 days", "14 days", "1 month", "3 months", "6 months", "1 year"} {
		if !ValidPeriod(p) {
			t.Errorf("ValidPeriod(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"", "2 days", "1 month; DROP TABLE users", "forever"} {
		if ValidPeriod(p) {
			t.Errorf("ValidPeriod(%q) = true, want false", p)
		}
	}
}
