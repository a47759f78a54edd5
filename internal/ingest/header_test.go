package ingest

import "testing"

func TestResolveHeaders_NormalizesVariants(t *testing.T) {
	headers := ResolveHeaders([]string{"\ufeffPhone_Number", "  CALL_DATE ", "status "})

	tests := []struct {
		key  string
		want string
	}{
		{"phone_number", "\ufeffPhone_Number"},
		{"call_date", "  CALL_DATE "},
		{"status", "status "},
	}

	for _, tt := range tests {
		got, ok := headers[tt.key]
		if !ok {
			t.Fatalf("headers[%q] missing", tt.key)
		}
		if got != tt.want {
			t.Errorf("headers[%q] = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestResolveHeaders_DropsEmpty(t *testing.T) {
	headers := ResolveHeaders([]string{"", "   ", "phone_number"})

	if len(headers) != 1 {
		t.Errorf("len(headers) = %d, want 1", len(headers))
	}
}

func TestResolveHeaders_DuplicateLastOneWins(t *testing.T) {
	headers := ResolveHeaders([]string{"Phone_Number", "phone_number"})

	if got := headers["phone_number"]; got != "phone_number" {
		t.Errorf("headers[phone_number] = %q, want %q (last one wins)", got, "phone_number")
	}
}

func TestGetVal_VariantsReturnIdenticalValue(t *testing.T) {
	// The same semantic field under different vendor spellings must resolve
	// to the same value.
	variants := []string{"\ufeffphone_number", "Phone_Number", " phone_number "}

	for _, v := range variants {
		headers := ResolveHeaders([]string{v})
		row := RawRow{v: "5551234567"}

		got, ok := GetVal(row, headers, "phone_number")
		if !ok {
			t.Fatalf("GetVal with header %q: not found", v)
		}
		if got != "5551234567" {
			t.Errorf("GetVal with header %q = %q, want %q", v, got, "5551234567")
		}
	}
}

func TestGetVal_CandidateOrder(t *testing.T) {
	headers := ResolveHeaders([]string{"phone_number_dialed", "phone_number"})
	row := RawRow{
		"phone_number_dialed": "111",
		"phone_number":        "222",
	}

	got, ok := GetVal(row, headers, "phone_number_dialed", "phone_number")
	if !ok {
		t.Fatal("GetVal: not found")
	}
	if got != "111" {
		t.Errorf("GetVal = %q, want %q (first candidate wins)", got, "111")
	}
}

func TestGetVal_MissingReturnsFalse(t *testing.T) {
	headers := ResolveHeaders([]string{"status"})
	row := RawRow{"status": "SALE"}

	if _, ok := GetVal(row, headers, "phone_number"); ok {
		t.Error("GetVal for absent field: got ok = true, want false")
	}
}
