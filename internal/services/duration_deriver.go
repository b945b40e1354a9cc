package services

import "github.com/Alan934/taller-charli-sub000/internal/models"

// DeriveDuration sums the estimated minutes of the selected issues that are present
// in the catalog. Issues without an estimate count as zero; a zero total is nil.
func DeriveDuration(catalog []models.CommonIssue, selected models.IssueIDSet) *int {
	if len(selected) == 0 || len(catalog) == 0 {
		return nil
	}

	total := 0
	for _, issue := range catalog {
		if issue.DurationMinutes == nil || !selected.Contains(issue.ID) {
			continue
		}
		total += *issue.DurationMinutes
	}

	if total <= 0 {
		return nil
	}
	return &total
}
