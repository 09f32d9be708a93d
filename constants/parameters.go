package constants

// TestParameters is the fixed, ordered parameter schema for COA extraction.
// The field extractor prompts for exactly these names and the validator keys
// its normalization rules off them, so both sides must share this list.
var TestParameters = []string{
	"Appearance -- visual inspection",
	"IR",
	"HPLC",
	"Assay -- HPLC (on anhydrous basis, %w/w)",
	"Single unspecified impurity",
	"BGB-24860",
	"RRT 0.56",
	"RRT 0.70",
	"RRT 0.72-0.73",
	"RRT 0.76",
	"RRT 0.80",
	"RRT 1.10",
	"Total impurities",
	"Enantiomeric Impurity -- HPLC (%w/w)",
	"Dichloromethane",
	"Ethyl acetate",
	"Isopropanol",
	"Methanol",
	"Tetrahydrofuran",
	"Residue on Ignition (%w/w)",
	"Palladium (ppm)",
	"Polymorphic Form -- XRPD",
	"Water Content -- KF (%w/w)",
	"RRT 0.83",
}

// AppearanceParameter gets its value capitalized during normalization.
const AppearanceParameter = "Appearance -- visual inspection"

// Sentinel values. TBD means "not extracted", ND means "confirmed absent".
// Both are distinct from an empty string.
const (
	SentinelTBD = "TBD"
	SentinelND  = "ND"
)

// Canonical forms for conformance results. Identification-type tests get the
// full phrase, everything else the short token.
const (
	ConformsShort = "Conforms"
	ConformsFull  = "Conforms to reference standard"
)

// identificationParameters is the subset of the schema normalized to ConformsFull.
var identificationParameters = map[string]struct{}{
	"IR":                       {},
	"HPLC":                     {},
	"Polymorphic Form -- XRPD": {},
}

// IsIdentificationParameter reports whether a conformance result for the named
// parameter should be expanded to the full canonical phrase.
func IsIdentificationParameter(name string) bool {
	_, ok := identificationParameters[name]
	return ok
}
