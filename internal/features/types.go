// Package features turns a single arecanut field observation into the
// numeric feature row the yield model was trained on.
//
// Encoding happens in two steps: Encode produces the named columns of the
// training convention, Align reindexes them against the column list the
// loaded model expects. Align is what keeps column order correct, so every
// prediction goes through it.
package features

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Variety is the cultivated arecanut variety.
type Variety string

const (
	VarietyMangala      Variety = "Mangala"
	VarietySKLocal      Variety = "SK Local"
	VarietySumangala    Variety = "Sumangala"
	VarietyShreemangala Variety = "Shreemangala"
)

// Varieties lists the varieties in form order.
var Varieties = []Variety{VarietyMangala, VarietySKLocal, VarietySumangala, VarietyShreemangala}

// Activity is the ordinal level used for microbial and soil enzyme activity.
type Activity string

const (
	ActivityHigh     Activity = "High"
	ActivityModerate Activity = "Moderate"
	ActivityLow      Activity = "Low"
)

var Activities = []Activity{ActivityHigh, ActivityModerate, ActivityLow}

// Disease identifies a disease or pest observed on the palm.
type Disease string

const (
	DiseaseKoleroga   Disease = "Koleroga (Mahali)"
	DiseaseSpindleBug Disease = "Spindle Bug"
)

var Diseases = []Disease{DiseaseKoleroga, DiseaseSpindleBug}

// Deficiency identifies a nutrient deficiency.
type Deficiency string

const (
	DeficiencyNitrogen   Deficiency = "Nitrogen Deficiency"
	DeficiencyPhosphorus Deficiency = "Phosphorus Deficiency"
	DeficiencyPotassium  Deficiency = "Potassium Deficiency"
)

var Deficiencies = []Deficiency{DeficiencyNitrogen, DeficiencyPhosphorus, DeficiencyPotassium}

// Weather is the prevailing weather condition. Observations without one are
// encoded as humid, which is what every training row was collected under.
type Weather string

const (
	WeatherHumid Weather = "Humid"
	WeatherDry   Weather = "Dry"
	WeatherRainy Weather = "Rainy"
)

var Weathers = []Weather{WeatherHumid, WeatherDry, WeatherRainy}

// BeneficialScale is the power of ten a beneficial microbe count is given in.
type BeneficialScale int

const (
	Scale1e7 BeneficialScale = 7
	Scale1e8 BeneficialScale = 8
	Scale1e9 BeneficialScale = 9
)

var BeneficialScales = []BeneficialScale{Scale1e7, Scale1e8, Scale1e9}

// Multiplier returns 10^k for the scale.
func (s BeneficialScale) Multiplier() float64 {
	return math.Pow10(int(s))
}

func (s BeneficialScale) String() string {
	return fmt.Sprintf("10^%d", int(s))
}

func (s BeneficialScale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *BeneficialScale) UnmarshalText(text []byte) error {
	v, err := ParseBeneficialScale(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// HarmfulScale selects how a harmful microbe count is read. HarmfulNone means
// no harmful microbes were detected and the count is ignored.
type HarmfulScale int

const (
	HarmfulNone HarmfulScale = 0
	Harmful1e5  HarmfulScale = 5
)

var HarmfulScales = []HarmfulScale{HarmfulNone, Harmful1e5}

// Multiplier returns 0 for HarmfulNone and 10^5 otherwise.
func (s HarmfulScale) Multiplier() float64 {
	if s == HarmfulNone {
		return 0
	}
	return math.Pow10(int(s))
}

func (s HarmfulScale) String() string {
	if s == HarmfulNone {
		return "0"
	}
	return fmt.Sprintf("10^%d", int(s))
}

func (s HarmfulScale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HarmfulScale) UnmarshalText(text []byte) error {
	v, err := ParseHarmfulScale(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Observation is one submission of field measurements.
type Observation struct {
	Variety            Variety         `json:"variety" yaml:"variety"`
	SoilPH             float64         `json:"soil_ph" yaml:"soil_ph"`
	Nitrogen           float64         `json:"nitrogen" yaml:"nitrogen"`
	Phosphorus         float64         `json:"phosphorus" yaml:"phosphorus"`
	Potassium          float64         `json:"potassium" yaml:"potassium"`
	OrganicMatter      float64         `json:"organic_matter" yaml:"organic_matter"` // kg compost
	BeneficialMicrobes float64         `json:"beneficial_microbes" yaml:"beneficial_microbes"`
	BeneficialScale    BeneficialScale `json:"beneficial_scale" yaml:"beneficial_scale"`
	HarmfulMicrobes    float64         `json:"harmful_microbes" yaml:"harmful_microbes"`
	HarmfulScale       HarmfulScale    `json:"harmful_scale" yaml:"harmful_scale"`
	MicrobialBiomass   float64         `json:"microbial_biomass" yaml:"microbial_biomass"`     // g/kg
	SoilOrganicCarbon  float64         `json:"soil_organic_carbon" yaml:"soil_organic_carbon"` // percent
	MicrobialActivity  Activity        `json:"microbial_activity" yaml:"microbial_activity"`
	SoilEnzymeActivity Activity        `json:"soil_enzyme_activity" yaml:"soil_enzyme_activity"`
	DiseasePresent     bool            `json:"disease_present" yaml:"disease_present"`
	Disease            Disease         `json:"disease,omitempty" yaml:"disease,omitempty"`
	DeficiencyPresent  bool            `json:"deficiency_present" yaml:"deficiency_present"`
	Deficiency         Deficiency      `json:"deficiency,omitempty" yaml:"deficiency,omitempty"`
	Weather            Weather         `json:"weather,omitempty" yaml:"weather,omitempty"`
}

// UnmarshalText stores the canonical label, so decoded observations always
// match the encoder's one-hot keys. An empty value is left empty for Validate
// to report.
func (v *Variety) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*v = ""
		return nil
	}
	parsed, err := ParseVariety(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (a *Activity) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*a = ""
		return nil
	}
	parsed, err := ParseActivity(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (w *Weather) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*w = ""
		return nil
	}
	parsed, err := ParseWeather(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Disease and deficiency identifiers only count while their presence flag is
// set, so an unknown label is kept as given and left for Validate.
func (d *Disease) UnmarshalText(text []byte) error {
	*d = Disease(text)
	if parsed, err := ParseDisease(string(text)); err == nil {
		*d = parsed
	}
	return nil
}

func (d *Deficiency) UnmarshalText(text []byte) error {
	*d = Deficiency(text)
	if parsed, err := ParseDeficiency(string(text)); err == nil {
		*d = parsed
	}
	return nil
}

// Canonical returns o with every recognised categorical label replaced by
// its canonical spelling. Unrecognised labels are kept as they are.
func (o Observation) Canonical() Observation {
	if v, err := ParseVariety(string(o.Variety)); err == nil {
		o.Variety = v
	}
	if a, err := ParseActivity(string(o.MicrobialActivity)); err == nil {
		o.MicrobialActivity = a
	}
	if a, err := ParseActivity(string(o.SoilEnzymeActivity)); err == nil {
		o.SoilEnzymeActivity = a
	}
	if d, err := ParseDisease(string(o.Disease)); err == nil {
		o.Disease = d
	}
	if d, err := ParseDeficiency(string(o.Deficiency)); err == nil {
		o.Deficiency = d
	}
	if w, err := ParseWeather(string(o.Weather)); err == nil {
		o.Weather = w
	}
	return o
}

// Validate checks that every categorical field holds a known value. Numeric
// bounds are enforced by the form layer, not here.
func (o Observation) Validate() error {
	if _, err := ParseVariety(string(o.Variety)); err != nil {
		return err
	}
	if _, err := ParseBeneficialScale(o.BeneficialScale.String()); err != nil {
		return err
	}
	if _, err := ParseHarmfulScale(o.HarmfulScale.String()); err != nil {
		return err
	}
	if _, err := ParseActivity(string(o.MicrobialActivity)); err != nil {
		return fmt.Errorf("microbial activity: %w", err)
	}
	if _, err := ParseActivity(string(o.SoilEnzymeActivity)); err != nil {
		return fmt.Errorf("soil enzyme activity: %w", err)
	}
	if o.DiseasePresent {
		if _, err := ParseDisease(string(o.Disease)); err != nil {
			return err
		}
	}
	if o.DeficiencyPresent {
		if _, err := ParseDeficiency(string(o.Deficiency)); err != nil {
			return err
		}
	}
	if o.Weather != "" {
		if _, err := ParseWeather(string(o.Weather)); err != nil {
			return err
		}
	}
	return nil
}

func ParseVariety(s string) (Variety, error) {
	for _, v := range Varieties {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variety %q", s)
}

func ParseActivity(s string) (Activity, error) {
	for _, a := range Activities {
		if strings.EqualFold(strings.TrimSpace(s), string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown activity level %q", s)
}

// ParseDisease accepts the full label or its short name ("Koleroga").
func ParseDisease(s string) (Disease, error) {
	s = strings.TrimSpace(s)
	for _, d := range Diseases {
		if strings.EqualFold(s, string(d)) || strings.EqualFold(s, shortName(string(d))) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown disease %q", s)
}

// ParseDeficiency accepts "Nitrogen Deficiency" as well as "Nitrogen".
func ParseDeficiency(s string) (Deficiency, error) {
	s = strings.TrimSpace(s)
	for _, d := range Deficiencies {
		if strings.EqualFold(s, string(d)) || strings.EqualFold(s, shortName(string(d))) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown nutrient deficiency %q", s)
}

func ParseWeather(s string) (Weather, error) {
	for _, w := range Weathers {
		if strings.EqualFold(strings.TrimSpace(s), string(w)) {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown weather condition %q", s)
}

// ParseBeneficialScale accepts "10^7", "1e7" or the bare exponent "7".
func ParseBeneficialScale(s string) (BeneficialScale, error) {
	k, ok := parseExponent(s)
	if ok {
		for _, scale := range BeneficialScales {
			if int(scale) == k {
				return scale, nil
			}
		}
	}
	return 0, fmt.Errorf("unsupported beneficial microbe scale %q", s)
}

// ParseHarmfulScale accepts "0" (none detected) or "10^5" / "1e5" / "5".
func ParseHarmfulScale(s string) (HarmfulScale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "none":
		return HarmfulNone, nil
	}
	if k, ok := parseExponent(s); ok && k == int(Harmful1e5) {
		return Harmful1e5, nil
	}
	return 0, fmt.Errorf("unsupported harmful microbe scale %q", s)
}

func parseExponent(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"10^", "1e"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	var k int
	if _, err := fmt.Sscanf(s, "%d", &k); err != nil || fmt.Sprint(k) != s {
		return 0, false
	}
	return k, true
}

// shortName drops the qualifier from a label: "Koleroga (Mahali)" becomes
// "Koleroga", "Nitrogen Deficiency" becomes "Nitrogen".
func shortName(label string) string {
	if i := strings.Index(label, " ("); i > 0 {
		return label[:i]
	}
	return strings.TrimSuffix(label, " Deficiency")
}
