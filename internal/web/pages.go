package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"arecayield/internal/features"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page identifies one of the site's pages.
type Page int

const (
	PageHome Page = iota
	PageDisease
	PageBreed
	PageConditions
	PageAbout
)

type pageSpec struct {
	slug  string
	title string
	nav   string
	file  string
}

// pageTable is the single dispatch table for page routing.
var pageTable = map[Page]pageSpec{
	PageHome:       {slug: "home", title: "Microbial Insights: Leveraging Soil Health for Predictive Crop Analytics", nav: "Home", file: "home.html"},
	PageDisease:    {slug: "disease", title: "Disease Details", nav: "Disease Details", file: "disease.html"},
	PageBreed:      {slug: "breed", title: "Breed Details", nav: "Breed Details", file: "breed.html"},
	PageConditions: {slug: "conditions", title: "Conditions Affecting Yield", nav: "Conditions", file: "conditions.html"},
	PageAbout:      {slug: "about", title: "About Us", nav: "About Us", file: "about.html"},
}

// pageOrder is the navigation bar order.
var pageOrder = []Page{PageHome, PageDisease, PageBreed, PageConditions, PageAbout}

// ParsePage maps a ?page= value to a Page. Unknown or empty values select
// the home page.
func ParsePage(slug string) Page {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, p := range pageOrder {
		if pageTable[p].slug == slug {
			return p
		}
	}
	return PageHome
}

func (p Page) String() string {
	if spec, ok := pageTable[p]; ok {
		return spec.slug
	}
	return fmt.Sprintf("page(%d)", int(p))
}

func (p Page) Title() string {
	return pageTable[p].title
}

type navItem struct {
	Label  string
	Href   string
	Active bool
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

// pageData is the template context for every page.
type pageData struct {
	Page      Page
	Title     string
	Nav       []navItem
	Values    url.Values
	Errors    ValidationErrors
	Result    string
	Failure   string
	RequestID string
	Outliers  []string
}

func newPageData(p Page) *pageData {
	nav := make([]navItem, 0, len(pageOrder))
	for _, np := range pageOrder {
		nav = append(nav, navItem{
			Label:  pageTable[np].nav,
			Href:   "?page=" + pageTable[np].slug,
			Active: np == p,
		})
	}
	return &pageData{
		Page:   p,
		Title:  p.Title(),
		Nav:    nav,
		Values: formDefaults,
		Errors: ValidationErrors{},
	}
}

// Value returns the submitted or default value of a form field.
func (d *pageData) Value(field string) string {
	return d.Values.Get(field)
}

// Options lists the choices of a select or radio field.
func (d *pageData) Options(field string) []option {
	var values []string
	switch field {
	case FieldVariety:
		for _, v := range features.Varieties {
			values = append(values, string(v))
		}
	case FieldMicrobialActivity, FieldSoilEnzymeActivity:
		for _, a := range features.Activities {
			values = append(values, string(a))
		}
	case FieldBeneficialScale:
		for _, s := range features.BeneficialScales {
			values = append(values, s.String())
		}
	case FieldHarmfulScale:
		for _, s := range features.HarmfulScales {
			values = append(values, s.String())
		}
	case FieldDisease:
		for _, v := range features.Diseases {
			values = append(values, string(v))
		}
	case FieldDeficiency:
		for _, v := range features.Deficiencies {
			values = append(values, string(v))
		}
	case FieldWeather:
		for _, v := range features.Weathers {
			values = append(values, string(v))
		}
	case FieldDiseasePresent, FieldDeficiencyPresent:
		values = []string{"No", "Yes"}
	}

	current := d.Values.Get(field)
	opts := make([]option, 0, len(values))
	for _, v := range values {
		opts = append(opts, option{Value: v, Label: v, Selected: strings.EqualFold(v, current)})
	}
	return opts
}

// parsePages builds one template set per page, each sharing the layout.
func parsePages() (map[Page]*template.Template, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[Page]*template.Template, len(pageTable))
	for _, p := range pageOrder {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+pageTable[p].file); err != nil {
			return nil, fmt.Errorf("parse %s page: %w", p, err)
		}
		pages[p] = t
	}
	return pages, nil
}
