package web

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"arecayield/internal/common"
	"arecayield/internal/features"
)

// Form field names.
const (
	FieldVariety            = "variety"
	FieldSoilPH             = "soil_ph"
	FieldNitrogen           = "nitrogen"
	FieldPhosphorus         = "phosphorus"
	FieldPotassium          = "potassium"
	FieldOrganicMatter      = "organic_matter"
	FieldBeneficialMicrobes = "beneficial_microbes"
	FieldBeneficialScale    = "beneficial_scale"
	FieldHarmfulMicrobes    = "harmful_microbes"
	FieldHarmfulScale       = "harmful_scale"
	FieldMicrobialBiomass   = "microbial_biomass"
	FieldSoilOrganicCarbon  = "soil_organic_carbon"
	FieldMicrobialActivity  = "microbial_activity"
	FieldSoilEnzymeActivity = "soil_enzyme_activity"
	FieldDiseasePresent     = "disease_present"
	FieldDisease            = "disease"
	FieldDeficiencyPresent  = "deficiency_present"
	FieldDeficiency         = "deficiency"
	FieldWeather            = "weather"
)

// formDefaults pre-fills the home page form.
var formDefaults = url.Values{
	FieldVariety:            {string(features.VarietyMangala)},
	FieldSoilPH:             {"6.5"},
	FieldNitrogen:           {"100"},
	FieldPhosphorus:         {"50"},
	FieldPotassium:          {"150"},
	FieldOrganicMatter:      {"0"},
	FieldBeneficialMicrobes: {"0"},
	FieldBeneficialScale:    {features.Scale1e7.String()},
	FieldHarmfulMicrobes:    {"0"},
	FieldHarmfulScale:       {features.HarmfulNone.String()},
	FieldMicrobialBiomass:   {"330"},
	FieldSoilOrganicCarbon:  {"0"},
	FieldMicrobialActivity:  {string(features.ActivityHigh)},
	FieldSoilEnzymeActivity: {string(features.ActivityHigh)},
	FieldDiseasePresent:     {"No"},
	FieldDeficiencyPresent:  {"No"},
	FieldWeather:            {string(features.WeatherHumid)},
}

// ValidationErrors maps a form field to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, field := range v.Fields() {
		parts = append(parts, field+": "+v[field])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Fields returns the rejected field names in sorted order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Has is used by the templates to mark a field as invalid.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

func (v ValidationErrors) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// ParseForm reads a submitted prediction form. The returned observation is
// only meaningful when the error set is empty.
func ParseForm(form url.Values) (features.Observation, ValidationErrors) {
	errs := ValidationErrors{}
	var obs features.Observation

	if v, err := features.ParseVariety(form.Get(FieldVariety)); err != nil {
		errs.add(FieldVariety, "choose a variety")
	} else {
		obs.Variety = v
	}

	obs.SoilPH = parseNumber(form, FieldSoilPH, errs)
	obs.Nitrogen = parseNumber(form, FieldNitrogen, errs)
	obs.Phosphorus = parseNumber(form, FieldPhosphorus, errs)
	obs.Potassium = parseNumber(form, FieldPotassium, errs)
	obs.OrganicMatter = parseNumber(form, FieldOrganicMatter, errs)
	obs.BeneficialMicrobes = parseNumber(form, FieldBeneficialMicrobes, errs)
	obs.MicrobialBiomass = parseNumber(form, FieldMicrobialBiomass, errs)
	obs.SoilOrganicCarbon = parseNumber(form, FieldSoilOrganicCarbon, errs)

	if s, err := features.ParseBeneficialScale(form.Get(FieldBeneficialScale)); err != nil {
		errs.add(FieldBeneficialScale, "choose 10^7, 10^8 or 10^9")
	} else {
		obs.BeneficialScale = s
	}

	if s, err := features.ParseHarmfulScale(orDefault(form.Get(FieldHarmfulScale), "0")); err != nil {
		errs.add(FieldHarmfulScale, "choose 0 or 10^5")
	} else {
		obs.HarmfulScale = s
		// The count is not asked for when no harmful microbes were found.
		if s != features.HarmfulNone {
			obs.HarmfulMicrobes = parseNumber(form, FieldHarmfulMicrobes, errs)
		}
	}

	if a, err := features.ParseActivity(form.Get(FieldMicrobialActivity)); err != nil {
		errs.add(FieldMicrobialActivity, "choose High, Moderate or Low")
	} else {
		obs.MicrobialActivity = a
	}
	if a, err := features.ParseActivity(form.Get(FieldSoilEnzymeActivity)); err != nil {
		errs.add(FieldSoilEnzymeActivity, "choose High, Moderate or Low")
	} else {
		obs.SoilEnzymeActivity = a
	}

	obs.DiseasePresent = parseYesNo(form, FieldDiseasePresent, errs)
	if obs.DiseasePresent {
		if d, err := features.ParseDisease(form.Get(FieldDisease)); err != nil {
			errs.add(FieldDisease, "select the disease")
		} else {
			obs.Disease = d
		}
	}

	obs.DeficiencyPresent = parseYesNo(form, FieldDeficiencyPresent, errs)
	if obs.DeficiencyPresent {
		if d, err := features.ParseDeficiency(form.Get(FieldDeficiency)); err != nil {
			errs.add(FieldDeficiency, "select the nutrient deficiency")
		} else {
			obs.Deficiency = d
		}
	}

	if w := form.Get(FieldWeather); w != "" {
		if parsed, err := features.ParseWeather(w); err != nil {
			errs.add(FieldWeather, "choose Humid, Dry or Rainy")
		} else {
			obs.Weather = parsed
		}
	}

	checkBounds(obs, errs)
	return obs, errs
}

// ValidateObservation applies the form bounds to an observation that did not
// come from the form, such as a JSON API request.
func ValidateObservation(obs features.Observation) ValidationErrors {
	errs := ValidationErrors{}
	if err := obs.Validate(); err != nil {
		errs.add("observation", err.Error())
	}
	for field, v := range map[string]float64{
		FieldSoilPH:             obs.SoilPH,
		FieldNitrogen:           obs.Nitrogen,
		FieldPhosphorus:         obs.Phosphorus,
		FieldPotassium:          obs.Potassium,
		FieldOrganicMatter:      obs.OrganicMatter,
		FieldBeneficialMicrobes: obs.BeneficialMicrobes,
		FieldHarmfulMicrobes:    obs.HarmfulMicrobes,
		FieldMicrobialBiomass:   obs.MicrobialBiomass,
		FieldSoilOrganicCarbon:  obs.SoilOrganicCarbon,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs.add(field, "must be a number")
		}
	}
	checkBounds(obs, errs)
	return errs
}

func checkBounds(obs features.Observation, errs ValidationErrors) {
	if obs.SoilPH < common.MinSoilPH || obs.SoilPH > common.MaxSoilPH {
		errs.add(FieldSoilPH, "must be between 4.0 and 9.0")
	}
	if obs.SoilOrganicCarbon < common.MinSoilOrganicCarbon || obs.SoilOrganicCarbon > common.MaxSoilOrganicCarbon {
		errs.add(FieldSoilOrganicCarbon, "must be between 0 and 100")
	}

	for field, v := range map[string]float64{
		FieldNitrogen:   obs.Nitrogen,
		FieldPhosphorus: obs.Phosphorus,
		FieldPotassium:  obs.Potassium,
	} {
		switch {
		case v < 0:
			errs.add(field, "must not be negative")
		case v != math.Trunc(v):
			errs.add(field, "must be a whole number")
		}
	}

	for field, v := range map[string]float64{
		FieldOrganicMatter:      obs.OrganicMatter,
		FieldBeneficialMicrobes: obs.BeneficialMicrobes,
		FieldHarmfulMicrobes:    obs.HarmfulMicrobes,
		FieldMicrobialBiomass:   obs.MicrobialBiomass,
	} {
		if v < 0 {
			errs.add(field, "must not be negative")
		}
	}
}

func parseNumber(form url.Values, field string, errs ValidationErrors) float64 {
	raw := strings.TrimSpace(form.Get(field))
	if raw == "" {
		errs.add(field, "required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		errs.add(field, "must be a number")
		return 0
	}
	return v
}

func parseYesNo(form url.Values, field string, errs ValidationErrors) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(field))) {
	case "", "no", "false", "0", "off":
		return false
	case "yes", "true", "1", "on":
		return true
	default:
		errs.add(field, "answer Yes or No")
		return false
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
