package nest

import (
	"sort"
	"strings"

	"knowledge-nest-backend/pkg/models"
)

// SortField selects the sort key for file listings.
type SortField string

const (
	SortByDate    SortField = "date"
	SortByName    SortField = "name"
	SortBySize    SortField = "size"
	SortBySubject SortField = "subject"
)

// SortOrder selects ascending or descending order.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortField maps a query value onto a sort field, defaulting to date.
func ParseSortField(s string) SortField {
	switch SortField(strings.ToLower(strings.TrimSpace(s))) {
	case SortByName:
		return SortByName
	case SortBySize:
		return SortBySize
	case SortBySubject:
		return SortBySubject
	default:
		return SortByDate
	}
}

// ParseSortOrder maps a query value onto a sort order, defaulting to
// descending (newest/largest first).
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == Ascending {
		return Ascending
	}
	return Descending
}

// Search returns the files whose filename, subject or uploader username
// contains term, case-insensitively. A record matches if any field matches.
// An empty term matches everything. The input slice is not modified.
func Search(files []models.NestFile, term string) []models.NestFile {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]models.NestFile(nil), files...)
	}

	matched := []models.NestFile{}
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Filename), term) ||
			strings.Contains(strings.ToLower(f.Subject), term) ||
			strings.Contains(strings.ToLower(f.UploadedBy), term) {
			matched = append(matched, f)
		}
	}
	return matched
}

// Sort orders files by the given field and order. The sort is stable, so
// records with equal keys keep their relative input order. The input slice
// is not modified.
func Sort(files []models.NestFile, field SortField, order SortOrder) []models.NestFile {
	out := append([]models.NestFile(nil), files...)

	sort.SliceStable(out, func(i, j int) bool {
		var comparison int
		switch field {
		case SortByName:
			comparison = strings.Compare(out[i].Filename, out[j].Filename)
		case SortBySize:
			switch {
			case out[i].FileSize < out[j].FileSize:
				comparison = -1
			case out[i].FileSize > out[j].FileSize:
				comparison = 1
			}
		case SortBySubject:
			comparison = strings.Compare(out[i].Subject, out[j].Subject)
		case SortByDate:
			fallthrough
		default:
			comparison = out[i].UploadDate.Compare(out[j].UploadDate)
		}
		if order == Descending {
			return comparison > 0
		}
		return comparison < 0
	})
	return out
}

// Apply composes Search then Sort, the way the file browser recomputes its
// view: filter first, then order. Pure and idempotent.
func Apply(files []models.NestFile, term string, field SortField, order SortOrder) []models.NestFile {
	return Sort(Search(files, term), field, order)
}
