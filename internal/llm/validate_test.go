package llm

import (
	"reflect"
	"testing"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

func recordWith(results map[string]string) BatchRecord {
	rec := NewEmptyRecord("a.pdf")
	for k, v := range results {
		rec.TestResults[k] = v
	}
	return rec
}

func TestValidate_Sentinels(t *testing.T) {
	rec := recordWith(map[string]string{
		"Dichloromethane": "not detected",
		"Ethyl acetate":   "None Detected",
		"Isopropanol":     "nd",
		"Methanol":        "to be determined",
		"Tetrahydrofuran": "  ",
	})
	got := Validate(rec)

	for param, want := range map[string]string{
		"Dichloromethane": constants.SentinelND,
		"Ethyl acetate":   constants.SentinelND,
		"Isopropanol":     constants.SentinelND,
		"Methanol":        constants.SentinelTBD,
		"Tetrahydrofuran": constants.SentinelTBD,
	} {
		if got.TestResults[param] != want {
			t.Errorf("%s = %q, want %q", param, got.TestResults[param], want)
		}
	}
}

func TestValidate_ConformsSplit(t *testing.T) {
	rec := recordWith(map[string]string{
		"IR":                       "conforms",
		"HPLC":                     "Conform",
		"Polymorphic Form -- XRPD": "conforms to reference std",
		"Total impurities":         "Conforms",
	})
	got := Validate(rec)

	if got.TestResults["IR"] != constants.ConformsFull {
		t.Errorf("IR = %q", got.TestResults["IR"])
	}
	if got.TestResults["HPLC"] != constants.ConformsFull {
		t.Errorf("HPLC = %q", got.TestResults["HPLC"])
	}
	if got.TestResults["Polymorphic Form -- XRPD"] != constants.ConformsFull {
		t.Errorf("XRPD = %q", got.TestResults["Polymorphic Form -- XRPD"])
	}
	// Non-identification tests keep the short token.
	if got.TestResults["Total impurities"] != constants.ConformsShort {
		t.Errorf("Total impurities = %q", got.TestResults["Total impurities"])
	}
}

func TestValidate_AppearanceCapitalized(t *testing.T) {
	rec := recordWith(map[string]string{constants.AppearanceParameter: "yellow powder"})
	got := Validate(rec)
	if got.TestResults[constants.AppearanceParameter] != "Yellow powder" {
		t.Errorf("appearance = %q", got.TestResults[constants.AppearanceParameter])
	}

	// Sentinels stay sentinels.
	rec = recordWith(map[string]string{constants.AppearanceParameter: "TBD"})
	got = Validate(rec)
	if got.TestResults[constants.AppearanceParameter] != constants.SentinelTBD {
		t.Errorf("appearance sentinel = %q", got.TestResults[constants.AppearanceParameter])
	}
}

func TestValidate_DateSeparators(t *testing.T) {
	rec := NewEmptyRecord("a.pdf")
	rec.ManufactureDate = " 2024.07.15 "
	got := Validate(rec)
	if got.ManufactureDate != "2024-07-15" {
		t.Errorf("manufacture date = %q", got.ManufactureDate)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	rec := recordWith(map[string]string{
		"IR":                          " conforms ",
		"Dichloromethane":             "Not Detected",
		constants.AppearanceParameter: "light yellow solid",
		"Assay -- HPLC (on anhydrous basis, %w/w)": " 99.7% ",
	})
	rec.BatchNumber = " CR-C200727003-FPF24001 "
	rec.ManufactureDate = "2024.01.02"
	rec.Manufacturer = " Changzhou SynTheAll Pharmaceutical Co., Ltd. "

	once := Validate(rec)
	twice := Validate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("validation not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}
