package web

import (
	"math"
	"net/url"
	"testing"

	"arecayield/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() url.Values {
	return url.Values{
		FieldVariety:            {"Mangala"},
		FieldSoilPH:             {"6.5"},
		FieldNitrogen:           {"100"},
		FieldPhosphorus:         {"50"},
		FieldPotassium:          {"150"},
		FieldOrganicMatter:      {"2"},
		FieldBeneficialMicrobes: {"5"},
		FieldBeneficialScale:    {"10^7"},
		FieldHarmfulMicrobes:    {""},
		FieldHarmfulScale:       {"0"},
		FieldMicrobialBiomass:   {"330"},
		FieldSoilOrganicCarbon:  {"3"},
		FieldMicrobialActivity:  {"High"},
		FieldSoilEnzymeActivity: {"Moderate"},
		FieldDiseasePresent:     {"No"},
		FieldDeficiencyPresent:  {"No"},
	}
}

func TestParseForm_Valid(t *testing.T) {
	obs, errs := ParseForm(validForm())
	require.Empty(t, errs)

	assert.Equal(t, features.VarietyMangala, obs.Variety)
	assert.Equal(t, 6.5, obs.SoilPH)
	assert.Equal(t, 100.0, obs.Nitrogen)
	assert.Equal(t, features.Scale1e7, obs.BeneficialScale)
	assert.Equal(t, features.HarmfulNone, obs.HarmfulScale)
	assert.Zero(t, obs.HarmfulMicrobes)
	assert.Equal(t, features.ActivityModerate, obs.SoilEnzymeActivity)
	assert.False(t, obs.DiseasePresent)
	assert.Empty(t, obs.Weather)
}

func TestParseForm_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		modify func(url.Values)
		field  string
	}{
		{"pH below range", func(v url.Values) { v.Set(FieldSoilPH, "3.9") }, FieldSoilPH},
		{"pH above range", func(v url.Values) { v.Set(FieldSoilPH, "9.1") }, FieldSoilPH},
		{"pH not a number", func(v url.Values) { v.Set(FieldSoilPH, "acidic") }, FieldSoilPH},
		{"pH missing", func(v url.Values) { v.Del(FieldSoilPH) }, FieldSoilPH},
		{"SOC above 100", func(v url.Values) { v.Set(FieldSoilOrganicCarbon, "100.5") }, FieldSoilOrganicCarbon},
		{"negative nitrogen", func(v url.Values) { v.Set(FieldNitrogen, "-1") }, FieldNitrogen},
		{"fractional potassium", func(v url.Values) { v.Set(FieldPotassium, "150.5") }, FieldPotassium},
		{"negative organic matter", func(v url.Values) { v.Set(FieldOrganicMatter, "-0.1") }, FieldOrganicMatter},
		{"unknown variety", func(v url.Values) { v.Set(FieldVariety, "Hybrid") }, FieldVariety},
		{"unsupported beneficial scale", func(v url.Values) { v.Set(FieldBeneficialScale, "10^6") }, FieldBeneficialScale},
		{"unsupported harmful scale", func(v url.Values) { v.Set(FieldHarmfulScale, "10^6") }, FieldHarmfulScale},
		{"harmful count required at 10^5", func(v url.Values) { v.Set(FieldHarmfulScale, "10^5") }, FieldHarmfulMicrobes},
		{"unknown activity", func(v url.Values) { v.Set(FieldMicrobialActivity, "Very High") }, FieldMicrobialActivity},
		{"disease without name", func(v url.Values) { v.Set(FieldDiseasePresent, "Yes") }, FieldDisease},
		{"deficiency without name", func(v url.Values) { v.Set(FieldDeficiencyPresent, "Yes") }, FieldDeficiency},
		{"bad yes/no", func(v url.Values) { v.Set(FieldDiseasePresent, "maybe") }, FieldDiseasePresent},
		{"unknown weather", func(v url.Values) { v.Set(FieldWeather, "Snowy") }, FieldWeather},
		{"infinite biomass", func(v url.Values) { v.Set(FieldMicrobialBiomass, "Inf") }, FieldMicrobialBiomass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.modify(form)

			_, errs := ParseForm(form)
			if !errs.Has(tt.field) {
				t.Errorf("Expected error on %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestParseForm_BoundsAreInclusive(t *testing.T) {
	for _, ph := range []string{"4", "9"} {
		form := validForm()
		form.Set(FieldSoilPH, ph)
		form.Set(FieldSoilOrganicCarbon, "100")
		if _, errs := ParseForm(form); len(errs) > 0 {
			t.Errorf("pH %s: unexpected errors %v", ph, errs)
		}
	}
}

func TestParseForm_DependentFields(t *testing.T) {
	t.Run("stale disease ignored when flag is No", func(t *testing.T) {
		form := validForm()
		form.Set(FieldDisease, "not a disease")
		form.Set(FieldDeficiency, "Nitrogen Deficiency")

		obs, errs := ParseForm(form)
		require.Empty(t, errs)
		assert.Empty(t, obs.Disease)
		assert.Empty(t, obs.Deficiency)
	})

	t.Run("disease and deficiency when flagged", func(t *testing.T) {
		form := validForm()
		form.Set(FieldDiseasePresent, "Yes")
		form.Set(FieldDisease, "Spindle Bug")
		form.Set(FieldDeficiencyPresent, "yes")
		form.Set(FieldDeficiency, "Potassium Deficiency")

		obs, errs := ParseForm(form)
		require.Empty(t, errs)
		assert.True(t, obs.DiseasePresent)
		assert.Equal(t, features.DiseaseSpindleBug, obs.Disease)
		assert.True(t, obs.DeficiencyPresent)
		assert.Equal(t, features.DeficiencyPotassium, obs.Deficiency)
	})

	t.Run("harmful count read at 10^5", func(t *testing.T) {
		form := validForm()
		form.Set(FieldHarmfulScale, "10^5")
		form.Set(FieldHarmfulMicrobes, "2.5")

		obs, errs := ParseForm(form)
		require.Empty(t, errs)
		assert.Equal(t, features.Harmful1e5, obs.HarmfulScale)
		assert.Equal(t, 2.5, obs.HarmfulMicrobes)
	})

	t.Run("missing harmful scale means none", func(t *testing.T) {
		form := validForm()
		form.Del(FieldHarmfulScale)
		form.Set(FieldHarmfulMicrobes, "9")

		obs, errs := ParseForm(form)
		require.Empty(t, errs)
		assert.Zero(t, obs.HarmfulMicrobes)
	})
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{}
	errs.add(FieldSoilPH, "required")
	errs.add(FieldSoilPH, "must be between 4.0 and 9.0")
	errs.add(FieldNitrogen, "must not be negative")

	assert.Equal(t, []string{FieldNitrogen, FieldSoilPH}, errs.Fields())
	assert.Equal(t, "required", errs[FieldSoilPH], "first message wins")
	assert.Equal(t, "invalid input: nitrogen: must not be negative; soil_ph: required", errs.Error())
}

func TestValidateObservation(t *testing.T) {
	obs, errs := ParseForm(validForm())
	require.Empty(t, errs)
	assert.Empty(t, ValidateObservation(obs))

	bad := obs
	bad.SoilPH = 12
	bad.Nitrogen = 10.5
	errs = ValidateObservation(bad)
	assert.True(t, errs.Has(FieldSoilPH))
	assert.True(t, errs.Has(FieldNitrogen))

	nan := obs
	nan.OrganicMatter = math.NaN()
	assert.True(t, ValidateObservation(nan).Has(FieldOrganicMatter))

	unknown := obs
	unknown.Variety = "Hybrid"
	assert.True(t, ValidateObservation(unknown).Has("observation"))
}
