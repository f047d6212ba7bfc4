package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mangalaObservation() Observation {
	return Observation{
		Variety:            VarietyMangala,
		SoilPH:             6.5,
		Nitrogen:           100,
		Phosphorus:         50,
		Potassium:          150,
		OrganicMatter:      10.0,
		BeneficialMicrobes: 5.0,
		BeneficialScale:    Scale1e7,
		HarmfulMicrobes:    0,
		HarmfulScale:       HarmfulNone,
		MicrobialBiomass:   330.0,
		SoilOrganicCarbon:  3.0,
		MicrobialActivity:  ActivityHigh,
		SoilEnzymeActivity: ActivityHigh,
	}
}

func sumOf(m map[string]float64, cols ...string) float64 {
	var s float64
	for _, c := range cols {
		s += m[c]
	}
	return s
}

func TestEncode_MangalaScenario(t *testing.T) {
	got := Encode(mangalaObservation())

	assert.Equal(t, 1.0, got[ColVarietyMangala])
	assert.Equal(t, 0.0, got[ColVarietySKLocal])
	assert.Equal(t, 0.0, got[ColVarietySumangala])
	assert.Equal(t, 0.0, got[ColVarietyShreemangala])
	assert.InDelta(t, 5.0e7, got[ColBeneficialMicrobes], 1e-6)
	assert.Equal(t, 0.0, got[ColHarmfulMicrobes])
	assert.InDelta(t, 0.03, got[ColSoilOrganicCarbon], 1e-12)
	assert.Equal(t, 1.0, got[ColMicrobialActivityHigh])
	assert.Equal(t, 1.0, got[ColSoilEnzymeActivityHigh])
	assert.Equal(t, 6.5, got[ColSoilPH])
	assert.Equal(t, 100.0, got[ColNitrogen])
	assert.Equal(t, 50.0, got[ColPhosphorus])
	assert.Equal(t, 150.0, got[ColPotassium])
	assert.Equal(t, 10.0, got[ColOrganicMatter])
	assert.Equal(t, 330.0, got[ColMicrobialBiomass])

	for _, col := range []string{
		ColDiseasePresent, ColDiseaseKoleroga, ColDiseaseSpindleBug,
		ColDeficiencyNitrogen, ColDeficiencyPhosphorus, ColDeficiencyPotassium,
	} {
		assert.Equal(t, 0.0, got[col], col)
	}

	assert.Len(t, got, len(Columns()))
}

func TestEncode_OneHotGroups(t *testing.T) {
	varietyCols := []string{ColVarietyMangala, ColVarietySKLocal, ColVarietySumangala, ColVarietyShreemangala}
	microbialCols := []string{ColMicrobialActivityHigh, ColMicrobialActivityModerate, ColMicrobialActivityLow}
	enzymeCols := []string{ColSoilEnzymeActivityHigh, ColSoilEnzymeActivityModerate, ColSoilEnzymeActivityLow}
	weatherCols := []string{ColWeatherHumid, ColWeatherDry, ColWeatherRainy}

	for _, v := range Varieties {
		for _, ma := range Activities {
			for _, ea := range Activities {
				o := mangalaObservation()
				o.Variety = v
				o.MicrobialActivity = ma
				o.SoilEnzymeActivity = ea
				got := Encode(o)

				assert.Equal(t, 1.0, sumOf(got, varietyCols...), "variety %s", v)
				assert.Equal(t, 1.0, got[varietyColumns[v]])
				assert.Equal(t, 1.0, sumOf(got, microbialCols...))
				assert.Equal(t, 1.0, got[microbialActivityColumns[ma]])
				assert.Equal(t, 1.0, sumOf(got, enzymeCols...))
				assert.Equal(t, 1.0, got[enzymeActivityColumns[ea]])
				assert.Equal(t, 1.0, sumOf(got, weatherCols...))
			}
		}
	}
}

func TestEncode_DiseaseFlagOffIgnoresStaleIdentifier(t *testing.T) {
	for _, d := range Diseases {
		o := mangalaObservation()
		o.DiseasePresent = false
		o.Disease = d

		got := Encode(o)
		assert.Equal(t, 0.0, sumOf(got, ColDiseasePresent, ColDiseaseKoleroga, ColDiseaseSpindleBug), "stale %s", d)
	}
}

func TestEncode_DiseasePresent(t *testing.T) {
	tests := []struct {
		disease Disease
		want    string
		other   string
	}{
		{DiseaseKoleroga, ColDiseaseKoleroga, ColDiseaseSpindleBug},
		{DiseaseSpindleBug, ColDiseaseSpindleBug, ColDiseaseKoleroga},
	}

	for _, tt := range tests {
		t.Run(string(tt.disease), func(t *testing.T) {
			o := mangalaObservation()
			o.DiseasePresent = true
			o.Disease = tt.disease

			got := Encode(o)
			assert.Equal(t, 1.0, got[ColDiseasePresent])
			assert.Equal(t, 1.0, got[tt.want])
			assert.Equal(t, 0.0, got[tt.other])
		})
	}
}

func TestEncode_Deficiency(t *testing.T) {
	cols := []string{ColDeficiencyNitrogen, ColDeficiencyPhosphorus, ColDeficiencyPotassium}

	for _, d := range Deficiencies {
		o := mangalaObservation()
		o.DeficiencyPresent = true
		o.Deficiency = d
		got := Encode(o)
		assert.Equal(t, 1.0, sumOf(got, cols...))
		assert.Equal(t, 1.0, got[deficiencyColumns[d]])

		o.DeficiencyPresent = false
		got = Encode(o)
		assert.Equal(t, 0.0, sumOf(got, cols...), "stale %s", d)
	}
}

func TestEncode_BeneficialScaling(t *testing.T) {
	tests := []struct {
		scale BeneficialScale
		value float64
		want  float64
	}{
		{Scale1e7, 5.0, 5.0e7},
		{Scale1e8, 2.5, 2.5e8},
		{Scale1e9, 1.2, 1.2e9},
		{Scale1e9, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.scale.String(), func(t *testing.T) {
			o := mangalaObservation()
			o.BeneficialMicrobes = tt.value
			o.BeneficialScale = tt.scale
			assert.InDelta(t, tt.want, Encode(o)[ColBeneficialMicrobes], tt.want*1e-12)
		})
	}
}

func TestEncode_HarmfulScaling(t *testing.T) {
	o := mangalaObservation()
	o.HarmfulMicrobes = 42.0
	o.HarmfulScale = HarmfulNone
	assert.Equal(t, 0.0, Encode(o)[ColHarmfulMicrobes])

	o.HarmfulScale = Harmful1e5
	assert.InDelta(t, 4.2e6, Encode(o)[ColHarmfulMicrobes], 1e-6)
}

func TestEncode_SoilOrganicCarbonIsFraction(t *testing.T) {
	o := mangalaObservation()
	o.SoilOrganicCarbon = 45.0
	assert.InDelta(t, 0.45, Encode(o)[ColSoilOrganicCarbon], 1e-12)
}

func TestEncode_WeatherDefaultsToHumid(t *testing.T) {
	got := Encode(mangalaObservation())
	assert.Equal(t, 1.0, got[ColWeatherHumid])
	assert.Equal(t, 0.0, got[ColWeatherDry])

	o := mangalaObservation()
	o.Weather = WeatherRainy
	got = Encode(o)
	assert.Equal(t, 0.0, got[ColWeatherHumid])
	assert.Equal(t, 1.0, got[ColWeatherRainy])
}

func TestAlign(t *testing.T) {
	raw := Encode(mangalaObservation())
	schema := []string{
		ColSoilPH,
		ColVarietyMangala,
		"Irrigation_Drip",
		ColBeneficialMicrobes,
	}

	row, report := Align(raw, schema)

	require.NoError(t, row.MatchesSchema(schema))
	assert.Equal(t, []float64{6.5, 1, 0, 5.0e7}, row.Values)
	assert.Equal(t, []string{"Irrigation_Drip"}, report.Missing)
	assert.True(t, report.Drifted())
	assert.Len(t, report.Extra, len(raw)-3)
	assert.NotContains(t, report.Extra, ColSoilPH)
	assert.IsIncreasing(t, report.Extra)
}

func TestAlign_FullSchemaNoDrift(t *testing.T) {
	schema := Columns()
	row, report := Build(mangalaObservation(), schema)

	assert.False(t, report.Drifted())
	assert.Empty(t, report.Extra)
	assert.Equal(t, schema, row.Columns)

	v, ok := row.Get(ColVarietyMangala)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestAlign_DoesNotAliasSchema(t *testing.T) {
	schema := []string{ColSoilPH}
	row, _ := Align(map[string]float64{ColSoilPH: 7}, schema)
	row.Columns[0] = "mutated"
	assert.Equal(t, ColSoilPH, schema[0])
}

func TestFeatureRow_MatchesSchema(t *testing.T) {
	row := FeatureRow{Columns: []string{"a", "b"}, Values: []float64{1, 2}}

	assert.NoError(t, row.MatchesSchema([]string{"a", "b"}))
	assert.Error(t, row.MatchesSchema([]string{"b", "a"}))
	assert.Error(t, row.MatchesSchema([]string{"a"}))
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, row.Map())
}

func TestEncode_NonCanonicalLabels(t *testing.T) {
	o := mangalaObservation()
	o.Variety = "mangala"
	o.MicrobialActivity = "high"
	o.SoilEnzymeActivity = "HIGH"
	o.DiseasePresent = true
	o.Disease = "Koleroga"
	o.DeficiencyPresent = true
	o.Deficiency = "Nitrogen"

	got := Encode(o)
	assert.Equal(t, 1.0, got[ColVarietyMangala])
	assert.Equal(t, 1.0, sumOf(got, ColVarietyMangala, ColVarietySKLocal, ColVarietySumangala, ColVarietyShreemangala))
	assert.Equal(t, 1.0, got[ColMicrobialActivityHigh])
	assert.Equal(t, 1.0, got[ColSoilEnzymeActivityHigh])
	assert.Equal(t, 1.0, got[ColDiseaseKoleroga])
	assert.Equal(t, 1.0, got[ColDeficiencyNitrogen])
}
