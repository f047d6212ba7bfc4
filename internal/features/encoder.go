package features

import "sort"

// Column names of the training convention.
const (
	ColVarietyMangala      = "Variety_Mangala"
	ColVarietySKLocal      = "Variety_SK Local"
	ColVarietyShreemangala = "Variety_Shreemangala"
	ColVarietySumangala    = "Variety_Sumangala"

	ColSoilPH             = "Soil_pH"
	ColNitrogen           = "N (Nitrogen)"
	ColPhosphorus         = "P (Phosphorus)"
	ColPotassium          = "K (Potassium)"
	ColOrganicMatter      = "Organic_Matter (kg compost)"
	ColBeneficialMicrobes = "Beneficial_Microbes (CFU/g)"
	ColHarmfulMicrobes    = "Harmful_Microbes (CFU/g)"
	ColMicrobialBiomass   = "Microbial_Biomass_C (g/kg)"
	ColSoilOrganicCarbon  = "Soil_Organic_Carbon"

	ColMicrobialActivityHigh     = "Microbial_Activity_High"
	ColMicrobialActivityModerate = "Microbial_Activity_Moderate"
	ColMicrobialActivityLow      = "Microbial_Activity_Low"

	ColSoilEnzymeActivityHigh     = "Soil_Enzyme_Activity_High"
	ColSoilEnzymeActivityModerate = "Soil_Enzyme_Activity_Moderate"
	ColSoilEnzymeActivityLow      = "Soil_Enzyme_Activity_Low"

	ColDiseasePresent    = "Disease (Yes/No)_Yes"
	ColDiseaseKoleroga   = "Disease_Name_Koleroga"
	ColDiseaseSpindleBug = "Disease_Name_Spindle Bug"

	ColDeficiencyNitrogen   = "Nutrient_Deficiency_Nitrogen"
	ColDeficiencyPhosphorus = "Nutrient_Deficiency_Phosphorus"
	ColDeficiencyPotassium  = "Nutrient_Deficiency_Potassium"

	ColWeatherHumid = "Weather_Condition_Humid"
	ColWeatherDry   = "Weather_Condition_Dry"
	ColWeatherRainy = "Weather_Condition_Rainy"
)

var (
	varietyColumns = map[Variety]string{
		VarietyMangala:      ColVarietyMangala,
		VarietySKLocal:      ColVarietySKLocal,
		VarietyShreemangala: ColVarietyShreemangala,
		VarietySumangala:    ColVarietySumangala,
	}
	microbialActivityColumns = map[Activity]string{
		ActivityHigh:     ColMicrobialActivityHigh,
		ActivityModerate: ColMicrobialActivityModerate,
		ActivityLow:      ColMicrobialActivityLow,
	}
	enzymeActivityColumns = map[Activity]string{
		ActivityHigh:     ColSoilEnzymeActivityHigh,
		ActivityModerate: ColSoilEnzymeActivityModerate,
		ActivityLow:      ColSoilEnzymeActivityLow,
	}
	diseaseColumns = map[Disease]string{
		DiseaseKoleroga:   ColDiseaseKoleroga,
		DiseaseSpindleBug: ColDiseaseSpindleBug,
	}
	deficiencyColumns = map[Deficiency]string{
		DeficiencyNitrogen:   ColDeficiencyNitrogen,
		DeficiencyPhosphorus: ColDeficiencyPhosphorus,
		DeficiencyPotassium:  ColDeficiencyPotassium,
	}
	weatherColumns = map[Weather]string{
		WeatherHumid: ColWeatherHumid,
		WeatherDry:   ColWeatherDry,
		WeatherRainy: ColWeatherRainy,
	}
)

var encoderColumns = []string{
	ColVarietyMangala,
	ColVarietySKLocal,
	ColVarietyShreemangala,
	ColVarietySumangala,
	ColSoilPH,
	ColNitrogen,
	ColPhosphorus,
	ColPotassium,
	ColOrganicMatter,
	ColBeneficialMicrobes,
	ColHarmfulMicrobes,
	ColMicrobialBiomass,
	ColSoilOrganicCarbon,
	ColMicrobialActivityHigh,
	ColMicrobialActivityModerate,
	ColMicrobialActivityLow,
	ColSoilEnzymeActivityHigh,
	ColSoilEnzymeActivityModerate,
	ColSoilEnzymeActivityLow,
	ColDiseasePresent,
	ColDiseaseKoleroga,
	ColDiseaseSpindleBug,
	ColDeficiencyNitrogen,
	ColDeficiencyPhosphorus,
	ColDeficiencyPotassium,
	ColWeatherHumid,
	ColWeatherDry,
	ColWeatherRainy,
}

// Columns returns the columns Encode produces, in training order.
func Columns() []string {
	out := make([]string, len(encoderColumns))
	copy(out, encoderColumns)
	return out
}

// Encode maps an observation to named feature columns. One-hot groups get
// exactly one indicator set for a known category. Identifier indicators are
// only set when their presence flag is true, so a stale identifier left on
// an observation with the flag off encodes as all zeros. Labels are matched
// the way the Parse functions match them.
func Encode(o Observation) map[string]float64 {
	o = o.Canonical()

	out := make(map[string]float64, len(encoderColumns))
	for _, col := range encoderColumns {
		out[col] = 0
	}

	oneHot(out, varietyColumns, o.Variety)
	oneHot(out, microbialActivityColumns, o.MicrobialActivity)
	oneHot(out, enzymeActivityColumns, o.SoilEnzymeActivity)

	weather := o.Weather
	if weather == "" {
		weather = WeatherHumid
	}
	oneHot(out, weatherColumns, weather)

	out[ColSoilPH] = o.SoilPH
	out[ColNitrogen] = o.Nitrogen
	out[ColPhosphorus] = o.Phosphorus
	out[ColPotassium] = o.Potassium
	out[ColOrganicMatter] = o.OrganicMatter
	out[ColBeneficialMicrobes] = o.BeneficialMicrobes * o.BeneficialScale.Multiplier()
	out[ColHarmfulMicrobes] = o.HarmfulMicrobes * o.HarmfulScale.Multiplier()
	out[ColMicrobialBiomass] = o.MicrobialBiomass
	out[ColSoilOrganicCarbon] = o.SoilOrganicCarbon / 100

	if o.DiseasePresent {
		out[ColDiseasePresent] = 1
		oneHot(out, diseaseColumns, o.Disease)
	}
	if o.DeficiencyPresent {
		oneHot(out, deficiencyColumns, o.Deficiency)
	}

	return out
}

func oneHot[K comparable](out map[string]float64, columns map[K]string, value K) {
	if col, ok := columns[value]; ok {
		out[col] = 1
	}
}

// AlignReport describes how an encoded row differed from the model schema.
type AlignReport struct {
	// Missing lists schema columns the encoder did not produce. They were
	// filled with zero.
	Missing []string `json:"missing,omitempty"`
	// Extra lists encoded columns the model does not know. They were dropped.
	Extra []string `json:"extra,omitempty"`
}

// Drifted reports whether the model expects columns the encoder never sets.
func (r AlignReport) Drifted() bool {
	return len(r.Missing) > 0
}

// Align reindexes raw against schema. The result has exactly the schema's
// columns in the schema's order; absent columns are zero.
func Align(raw map[string]float64, schema []string) (FeatureRow, AlignReport) {
	var report AlignReport

	row := FeatureRow{
		Columns: make([]string, len(schema)),
		Values:  make([]float64, len(schema)),
	}
	copy(row.Columns, schema)

	known := make(map[string]struct{}, len(schema))
	for i, col := range schema {
		known[col] = struct{}{}
		if v, ok := raw[col]; ok {
			row.Values[i] = v
		} else {
			report.Missing = append(report.Missing, col)
		}
	}

	for col := range raw {
		if _, ok := known[col]; !ok {
			report.Extra = append(report.Extra, col)
		}
	}
	sort.Strings(report.Extra)

	return row, report
}

// Build encodes o and aligns it against schema.
func Build(o Observation, schema []string) (FeatureRow, AlignReport) {
	return Align(Encode(o), schema)
}
