package clean

import "testing"

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		region      string
		wantNumber  string
		wantCountry string
		wantValid   bool
	}{
		{"us ten digit unassignable", "5551234567", "US", "5551234567", "", false},
		{"us valid", "+1 650 253 0000", "US", "+16502530000", "US", true},
		{"us valid no prefix", "650-253-0000", "US", "+16502530000", "US", true},
		{"gb valid", "+44 20 7031 3000", "US", "+442070313000", "GB", true},
		{"empty", "", "US", "", "", false},
		{"garbage", "call me", "US", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, country, valid := CleanPhone(tt.raw, tt.region)
			if number != tt.wantNumber || country != tt.wantCountry || valid != tt.wantValid {
				t.Errorf("CleanPhone(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.raw, tt.region, number, country, valid,
					tt.wantNumber, tt.wantCountry, tt.wantValid)
			}
		})
	}
}

func TestCleanPhoneRoundTrip(t *testing.T) {
	// Normalizing an already-normalized valid number must be a fixed point.
	for _, raw := range []string{"+16502530000", "+442070313000"} {
		first, country, valid := CleanPhone(raw, "US")
		if !valid {
			t.Fatalf("expected %q to be valid", raw)
		}
		second, country2, valid2 := CleanPhone(first, "US")
		if second != first || country2 != country || !valid2 {
			t.Errorf("round trip changed %q: (%q,%q,%v) then (%q,%q,%v)",
				raw, first, country, valid, second, country2, valid2)
		}
	}
}
