package ingestion

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/scout-go/internal/rag"
)

// precision records which date components a pattern yields.
type precision int

const (
	precisionYear precision = iota + 1
	precisionMonth
	precisionDay
)

// datePattern is one filename date format. The submatches are year, then
// month and day when the precision includes them.
type datePattern struct {
	re        *regexp.Regexp
	precision precision
}

// datePatterns is tried in order against the filename; first valid match wins.
// The surrounding non-digit guards keep a pattern from matching inside a
// longer run of digits (arXiv IDs, version numbers).
var datePatterns = []datePattern{
	{regexp.MustCompile(`(?:^|[^0-9])(\d{4})-(\d{2})-(\d{2})(?:[^0-9]|$)`), precisionDay},
	{regexp.MustCompile(`(?:^|[^0-9])(\d{4})(\d{2})(\d{2})(?:[^0-9]|$)`), precisionDay},
	{regexp.MustCompile(`(?:^|[^0-9])(\d{4})[_.](\d{2})[_.](\d{2})(?:[^0-9]|$)`), precisionDay},
	{regexp.MustCompile(`(?:^|[^0-9])(\d{4})-(\d{2})(?:[^0-9]|$)`), precisionMonth},
	{regexp.MustCompile(`(?:^|[^0-9])(\d{4})(?:[^0-9]|$)`), precisionYear},
}

// Plausible publication years. Four-digit numbers outside this range are
// treated as identifiers, not dates.
const (
	minYear = 1900
	maxYear = 2100
)

// Extract derives metadata from a document reference. Only the filename is
// inspected. When no date is recognised the publication year defaults to
// now's year and the timestamp to now; this is a fallback, not an error.
// Extract is deterministic for a given ref and now.
func Extract(ref string, now time.Time) rag.DocumentMetadata {
	name := path.Base(ref)
	md := rag.DocumentMetadata{Source: ref}

	// A leading dot marks a hidden file, not an extension.
	if i := strings.LastIndex(name, "."); i > 0 && i < len(name)-1 {
		md.FileType = strings.ToLower(name[i+1:])
	}

	for _, p := range datePatterns {
		y, m, d, ok := match(p, name)
		if !ok {
			continue
		}
		md.PublicationYear = y
		switch p.precision {
		case precisionDay:
			md.PublicationMonth, md.PublicationDay = m, d
			md.PublicationDate = fmt.Sprintf("%04d-%02d-%02d", y, m, d)
		case precisionMonth:
			md.PublicationMonth = m
			md.PublicationDate = fmt.Sprintf("%04d-%02d", y, m)
		default:
			md.PublicationDate = fmt.Sprintf("%04d", y)
		}
		md.IngestionTimestamp = time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Unix()
		return md
	}

	md.PublicationYear = now.Year()
	md.IngestionTimestamp = now.Unix()
	return md
}

// match returns the first candidate for p in name whose components form a
// valid calendar date.
func match(p datePattern, name string) (year, month, day int, ok bool) {
	for _, sm := range p.re.FindAllStringSubmatch(name, -1) {
		year, _ = strconv.Atoi(sm[1])
		month, day = 1, 1
		if p.precision >= precisionMonth {
			month, _ = strconv.Atoi(sm[2])
		}
		if p.precision == precisionDay {
			day, _ = strconv.Atoi(sm[3])
		}
		if validDate(year, month, day) {
			return year, month, day, true
		}
	}
	return 0, 0, 0, false
}

// validDate reports whether y-m-d exists in the calendar.
func validDate(y, m, d int) bool {
	if y < minYear || y > maxYear || m < 1 || m > 12 || d < 1 {
		return false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Day() == d && int(t.Month()) == m
}

var (
	yearRangePhrase = regexp.MustCompile(`(?i)\s*\b(?:from|between)\s+((?:19|20)\d{2})\s+(?:to|and|-)\s+((?:19|20)\d{2})\b`)
	sincePhrase     = regexp.MustCompile(`(?i)\s*\b(?:since|after)\s+((?:19|20)\d{2})\b`)
	inYearPhrase    = regexp.MustCompile(`(?i)\s*\b(?:in|during|from)\s+((?:19|20)\d{2})\b`)
)

// CleanQuery strips year and year-range phrases ("in 2023", "between 2021
// and 2023", "since 2020") from a free-text query and returns the cleaned
// text with the years it removed. The years are informational only and are
// never applied as a retrieval filter.
func CleanQuery(query string) (string, []int) {
	original := query
	var years []int
	collect := func(re *regexp.Regexp) {
		for _, sm := range re.FindAllStringSubmatch(query, -1) {
			for _, s := range sm[1:] {
				if y, err := strconv.Atoi(s); err == nil {
					years = append(years, y)
				}
			}
		}
		query = re.ReplaceAllString(query, "")
	}
	collect(yearRangePhrase)
	collect(sincePhrase)
	collect(inYearPhrase)

	cleaned := strings.Join(strings.Fields(query), " ")
	cleaned = strings.TrimSpace(strings.TrimRight(cleaned, " ,;"))
	if cleaned == "" {
		return original, years
	}
	return cleaned, years
}
