package locale

import "testing"

func TestRegionsOrderIsStable(t *testing.T) {
	first := Regions()
	second := Regions()
	if len(first) != len(second) {
		t.Fatalf("region count changed between calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("region order differs at %d: %s vs %s", i, first[i], second[i])
		}
	}

	// Callers may not mutate the shared order.
	first[0] = "XX"
	if Regions()[0] == "XX" {
		t.Error("Regions() exposes internal slice")
	}
}

func TestRegionsHaveCountryData(t *testing.T) {
	for _, code := range Regions() {
		country, ok := Countries[code]
		if !ok {
			t.Errorf("region %s has no country entry", code)
			continue
		}
		if country.Code != code || len(country.PhonePrefixes) == 0 {
			t.Errorf("country entry for %s is incomplete: %+v", code, country)
		}
	}
}
