package classify

import "strings"

// Known facility labels. DeriveLab maps every section label onto
// exactly one of these.
const (
	LabSoCal    = "SoCal"
	LabVegas    = "Vegas"
	LabCombined = "OC + LV"
	LabMain     = "Main"
)

// DeriveLab maps a section label to a facility. Substrings are tested
// in a fixed priority order; the first match wins.
func DeriveLab(section string) string {
	lower := strings.ToLower(section)
	switch {
	case strings.Contains(lower, "socal"):
		return LabSoCal
	case strings.Contains(lower, "vegas") && !strings.Contains(lower, "oc"):
		return LabVegas
	case strings.Contains(lower, "tier 3"),
		strings.Contains(lower, "oc") && strings.Contains(lower, "lv"):
		return LabCombined
	default:
		return LabMain
	}
}

const unknownRank = 99

// LabRank orders labs for presentation, mirroring the derivation
// priority. Unknown labs sort last.
func LabRank(lab string) int {
	switch lab {
	case LabSoCal:
		return 0
	case LabVegas:
		return 1
	case LabCombined:
		return 2
	case LabMain:
		return 3
	}
	return unknownRank
}

// TierRank orders tier labels for presentation. "Tier 1 Exotic" sorts
// before plain "Tier 1"; unknown tiers sort last.
func TierRank(tier string) int {
	lower := strings.ToLower(strings.TrimSpace(tier))
	switch {
	case strings.Contains(lower, "tier 1") && strings.Contains(lower, "exotic"):
		return 0
	case strings.Contains(lower, "tier 1"):
		return 1
	case strings.Contains(lower, "tier 2"):
		return 2
	case strings.Contains(lower, "tier 3"):
		return 3
	case strings.Contains(lower, "tier 4"):
		return 4
	}
	return unknownRank
}
