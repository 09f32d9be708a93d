package constants

import "testing"

func TestParseDocStatus_RoundTrip(t *testing.T) {
	for _, s := range []DocStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		got, err := ParseDocStatus(s.String())
		if err != nil {
			t.Fatalf("ParseDocStatus(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseDocStatus(%q) = %q", s, got)
		}
	}
}

func TestParseDocStatus_RejectsUnknown(t *testing.T) {
	for _, v := range []string{"", "PENDING", "done", "error"} {
		if _, err := ParseDocStatus(v); err == nil {
			t.Errorf("ParseDocStatus(%q): expected error", v)
		}
	}
}

func TestIsIdentificationParameter(t *testing.T) {
	for _, p := range []string{"IR", "HPLC", "Polymorphic Form -- XRPD"} {
		if !IsIdentificationParameter(p) {
			t.Errorf("IsIdentificationParameter(%q) = false", p)
		}
	}
	if IsIdentificationParameter("Total impurities") {
		t.Error("Total impurities is not an identification parameter")
	}
	if IsIdentificationParameter(AppearanceParameter) {
		t.Error("appearance is not an identification parameter")
	}
}
