package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Category holds the organizational placement of a product.
type Category struct {
	Group  string `yaml:"mandant"`
	Sector string `yaml:"sector"`
}

// Expected holds the reference sets the validator compares the published
// dataset against. These values change over time and have to be updated
// together with the product lookup.
type Expected struct {
	Columns      []string `yaml:"columns"`
	Groups       []string `yaml:"mandants"`
	CardProfiles []string `yaml:"cardprofiles"`
	Levels       []int    `yaml:"levels"`
	PeriodKinds  []int    `yaml:"period_kinds"`
	PeriodCount  int      `yaml:"n_periods"`
}

// Reference is the static category reference: an immutable, versioned
// configuration object. It is maintained outside the pipeline and has to be
// extended whenever a new product is introduced upstream. Entries for
// retired products stay as long as historical data referencing them is
// still processed.
type Reference struct {
	Version string `yaml:"version"`
	// Products maps the exact product name to its group and sector.
	Products map[string]Category `yaml:"products"`
	// DropMetrics are known-bad metric names without a valid entity level;
	// the normalizer removes their rows.
	DropMetrics []string `yaml:"drop_metrics"`
	// DropEntities are placeholder product names the normalizer removes.
	DropEntities []string `yaml:"drop_entities"`
	Expected     Expected `yaml:"expected"`
}

// Lookup returns the category of a product and whether it is known.
func (r *Reference) Lookup(product string) (Category, bool) {
	c, ok := r.Products[product]
	return c, ok
}

// LoadReference reads a reference object from a YAML file, or returns the
// compiled-in default when path is empty.
func LoadReference(path string) (*Reference, error) {
	if path == "" {
		return DefaultReference(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file %s: %w", path, err)
	}
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference file %s: %w", path, err)
	}
	if len(ref.Products) == 0 {
		return nil, fmt.Errorf("reference file %s contains no products", path)
	}
	return &ref, nil
}

// DefaultReference returns the compiled-in category reference.
func DefaultReference() *Reference {
	return &Reference{
		Version: "2024-03",
		Products: map[string]Category{
			"VISA Bonuscard":                  {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Classic":          {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Exclusive":        {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Gold":             {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Prepaid":          {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Classic Charge":   {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Exclusive Charge": {Group: "Bonus Card", Sector: "B2C"},
			"VISA Bonuscard Gold Charge":      {Group: "Bonus Card", Sector: "B2C"},
			"ALUMNI VBC":                      {Group: "Bonus Card", Sector: "B2C"},
			"VISA LibertyCard Credit":         {Group: "Liberty", Sector: "B2C"},
			"VISA LibertyCard Plus Credit":    {Group: "Liberty", Sector: "B2C"},
			"VISA LibertyCard Prepaid":        {Group: "Liberty", Sector: "B2C"},
			"VISA LibertyCard Charge":         {Group: "Liberty", Sector: "B2C"},
			"VISA LibertyCard Plus Charge":    {Group: "Liberty", Sector: "B2C"},
			"Simply VISA Card Credit":         {Group: "Simply", Sector: "B2C"},
			"Simply VISA Card Prepaid":        {Group: "Simply", Sector: "B2C"},
			"Simply VISA Card Charge":         {Group: "Simply", Sector: "B2C"},
			"Edelweiss Business Card":         {Group: "Edelweiss", Sector: "B2B2C"},
			"Edelweiss Credit Card":           {Group: "Edelweiss", Sector: "B2B2C"},
			"Edelweiss Prepaid Card":          {Group: "Edelweiss", Sector: "B2B2C"},
			"SWISS Crew Credit Card":          {Group: "Edelweiss", Sector: "B2B2C"},
			"SWISS Crew Prepaid Card":         {Group: "Edelweiss", Sector: "B2B2C"},
			"FACES Visa Bonus Card":           {Group: "FACES", Sector: "B2B2C"},
			"FACES Visa Bonus Card Prepaid":   {Group: "FACES", Sector: "B2B2C"},
			"HSG Alumni VBC Classic":          {Group: "HSG Alumni", Sector: "B2B2C"},
			"HSG Alumni VBC Exclusive":        {Group: "HSG Alumni", Sector: "B2B2C"},
			"JVBC Premium Classic":            {Group: "Jelmoli", Sector: "B2B2C"},
			"JVBC Premium Gold":               {Group: "Jelmoli", Sector: "B2B2C"},
			"JVBC Royal Classic":              {Group: "Jelmoli", Sector: "B2B2C"},
			"JVBC Royal Gold":                 {Group: "Jelmoli", Sector: "B2B2C"},
			"SBB Businesscard Classic":        {Group: "SBB", Sector: "B2B2C"},
			"SBB Businesscard Gold":           {Group: "SBB", Sector: "B2B2C"},
			"SBB Kredit mit Abo":              {Group: "SBB", Sector: "B2B2C"},
			"SBB Kredit ohne Abo":             {Group: "SBB", Sector: "B2B2C"},
			"SBB Prepaid mit Abo":             {Group: "SBB", Sector: "B2B2C"},
			"SBB Prepaid ohne Abo":            {Group: "SBB", Sector: "B2B2C"},
			"TUI VISA Card Classic":           {Group: "TUI", Sector: "B2B2C"},
			"TUI VISA Card Exclusive":         {Group: "TUI", Sector: "B2B2C"},
			"TUI VISA Card Gold":              {Group: "TUI", Sector: "B2B2C"},
			"TUI VISA Card Prepaid":           {Group: "TUI", Sector: "B2B2C"},
			"UZH Alumni VBC Classic":          {Group: "UZH Alumni", Sector: "B2B2C"},
			"UZH Alumni VBC Exclusive":        {Group: "UZH Alumni", Sector: "B2B2C"},
		},
		DropMetrics: []string{
			"NCA Bestand (reserviert)",
		},
		DropEntities: []string{
			"reserviert",
			"Reserved",
		},
		Expected: Expected{
			Columns: []string{
				"calculation_date", "kpi_name", "period_id", "product_name",
				"cardprofile", "mandant", "sector", "level", "value", "value_avg",
			},
			Groups: []string{
				"Bonus Card", "Edelweiss", "FACES", "HSG Alumni", "Jelmoli",
				"Liberty", "SBB", "Simply", "TUI", "UZH Alumni",
				"B2C", "B2B2C", "Overall",
			},
			CardProfiles: []string{"all", "CC", "PP", "CCL"},
			Levels:       []int{0, 1, 2, 3},
			PeriodKinds:  []int{1, 2},
			PeriodCount:  37,
		},
	}
}
