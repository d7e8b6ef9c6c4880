package matching

import (
	"sort"
	"strings"
)

// Canonical fuel type codes.
const (
	FuelDiesel        = "DIESEL"
	FuelPetrol        = "BENZINA"
	FuelLPG           = "GPL"
	FuelCNG           = "METANO"
	FuelElectric      = "ELETTRICO"
	FuelHybridPetrol  = "IBRIDO_BENZINA"
	FuelHybridDiesel  = "IBRIDO_DIESEL"
	FuelPetrolLPG     = "BENZINA_GPL"
	FuelPetrolCNG     = "BENZINA_METANO"
	FuelHydrogen      = "IDROGENO"
	FuelAdditiveAdBlu = "ADBLUE"
)

// fuelSynonyms maps lower-case free text to a canonical code.
var fuelSynonyms = map[string]string{
	"diesel":               FuelDiesel,
	"gasolio":              FuelDiesel,
	"gasolio autotrazione": FuelDiesel,
	"gasoil":               FuelDiesel,
	"gas oil":              FuelDiesel,
	"hvo":                  FuelDiesel,
	"diesel+":              FuelDiesel,
	"blue diesel":          FuelDiesel,
	"b7":                   FuelDiesel,

	"benzina":      FuelPetrol,
	"benzina sp":   FuelPetrol,
	"senza piombo": FuelPetrol,
	"bsp":          FuelPetrol,
	"petrol":       FuelPetrol,
	"gasoline":     FuelPetrol,
	"unleaded":     FuelPetrol,
	"super":        FuelPetrol,
	"e10":          FuelPetrol,
	"e5":           FuelPetrol,

	"gpl":     FuelLPG,
	"lpg":     FuelLPG,
	"autogas": FuelLPG,

	"metano":      FuelCNG,
	"cng":         FuelCNG,
	"gnc":         FuelCNG,
	"natural gas": FuelCNG,

	"elettrico": FuelElectric,
	"elettrica": FuelElectric,
	"electric":  FuelElectric,
	"ricarica":  FuelElectric,
	"ev":        FuelElectric,

	"ibrido":             FuelHybridPetrol,
	"ibrido benzina":     FuelHybridPetrol,
	"ibrida benzina":     FuelHybridPetrol,
	"hybrid":             FuelHybridPetrol,
	"hybrid petrol":      FuelHybridPetrol,
	"ibrido diesel":      FuelHybridDiesel,
	"ibrida diesel":      FuelHybridDiesel,
	"hybrid diesel":      FuelHybridDiesel,
	"mild hybrid diesel": FuelHybridDiesel,

	"benzina/gpl":    FuelPetrolLPG,
	"benzina gpl":    FuelPetrolLPG,
	"bifuel gpl":     FuelPetrolLPG,
	"benzina/metano": FuelPetrolCNG,
	"benzina metano": FuelPetrolCNG,
	"bifuel metano":  FuelPetrolCNG,

	"idrogeno": FuelHydrogen,
	"hydrogen": FuelHydrogen,

	"adblue":  FuelAdditiveAdBlu,
	"ad blue": FuelAdditiveAdBlu,
	"ad-blue": FuelAdditiveAdBlu,
	"urea":    FuelAdditiveAdBlu,
}

// fuelGroups are sets of codes that partially match each other.
var fuelGroups = [][]string{
	{FuelDiesel, FuelHybridDiesel},
	{FuelPetrol, FuelHybridPetrol, FuelPetrolLPG, FuelPetrolCNG},
	{FuelLPG, FuelPetrolLPG},
	{FuelCNG, FuelPetrolCNG},
}

// substringKeys are the synonyms tried as substrings, longest first so that
// "ibrido diesel" wins over "diesel".
var substringKeys = func() []string {
	keys := make([]string, 0, len(fuelSynonyms))
	for k := range fuelSynonyms {
		// too short to search inside free text
		if len(k) < 3 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// CanonicalFuelType maps free text to a canonical code, or "" when unknown.
// Canonical codes map to themselves.
func CanonicalFuelType(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ""
	}
	t = strings.Join(strings.Fields(strings.ReplaceAll(t, "_", " ")), " ")

	if code, ok := fuelSynonyms[t]; ok {
		return code
	}
	if code := strings.ReplaceAll(strings.ToUpper(t), " ", "_"); isCode(code) {
		return code
	}
	for _, k := range substringKeys {
		if strings.Contains(t, k) {
			return fuelSynonyms[k]
		}
	}
	return ""
}

func isCode(s string) bool {
	switch s {
	case FuelDiesel, FuelPetrol, FuelLPG, FuelCNG, FuelElectric, FuelHybridPetrol,
		FuelHybridDiesel, FuelPetrolLPG, FuelPetrolCNG, FuelHydrogen, FuelAdditiveAdBlu:
		return true
	}
	return false
}

// FuelTypeCompatible reports whether two different codes share a group.
func FuelTypeCompatible(a, b string) bool {
	for _, g := range fuelGroups {
		var hasA, hasB bool
		for _, code := range g {
			hasA = hasA || code == a
			hasB = hasB || code == b
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}
