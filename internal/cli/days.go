package cli

import "github.com/davidbz/liftplan/internal/domain"

// DayNames lists the day templates of a plan in cycle order, each name once.
func DayNames(structure domain.PlanStructure) []string {
	seen := make(map[string]bool)
	var names []string
	for _, week := range structure.Weeks {
		for _, day := range week.Days {
			if seen[day.Name] {
				continue
			}
			seen[day.Name] = true
			names = append(names, day.Name)
		}
	}
	return names
}
