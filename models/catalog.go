package models

// WorkTypeGroup is one heading of the fixed work-type catalog.
type WorkTypeGroup struct {
	Name      string   `json:"name"`
	WorkTypes []string `json:"workTypes"`
}

// WorkTypeCatalog is the fixed list of work types an engineer can report.
var WorkTypeCatalog = []WorkTypeGroup{
	{Name: "Core Construction", WorkTypes: []string{"Structural Work", "Masonry Work", "Plastering"}},
	{Name: "MEP Works", WorkTypes: []string{"Plumbing Work", "Electrical Work", "HVAC Work"}},
	{Name: "Finishing Works", WorkTypes: []string{
		"Waterproofing", "Toilet Finishes", "Lift Lobby Finishes", "Painting", "Flooring", "False Ceiling",
	}},
}

// CatalogGroupOf returns the catalog group containing name.
func CatalogGroupOf(name string) (string, bool) {
	for _, g := range WorkTypeCatalog {
		for _, wt := range g.WorkTypes {
			if wt == name {
				return g.Name, true
			}
		}
	}
	return "", false
}

// IsCatalogWorkType reports whether name is in the catalog.
func IsCatalogWorkType(name string) bool {
	_, ok := CatalogGroupOf(name)
	return ok
}

// CatalogOrder maps every catalog work type to its position, for sorting.
func CatalogOrder() map[string]int {
	order := make(map[string]int)
	for _, g := range WorkTypeCatalog {
		for _, wt := range g.WorkTypes {
			order[wt] = len(order)
		}
	}
	return order
}
