package ingestion

import (
	"reflect"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ref      string
		date     string
		year     int
		month    int
		day      int
		fileType string
		epoch    int64
	}{
		{
			name: "iso date prefix", ref: "gs://papers/arxiv_security_papers/2023-05-15_report.pdf",
			date: "2023-05-15", year: 2023, month: 5, day: 15, fileType: "pdf",
			epoch: time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "compact date", ref: "gs://papers/cves/CVE-dump-20240102.json",
			date: "2024-01-02", year: 2024, month: 1, day: 2, fileType: "json",
			epoch: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "underscore date", ref: "gs://papers/uploaded_papers/notes_2022_11_30.TXT",
			date: "2022-11-30", year: 2022, month: 11, day: 30, fileType: "txt",
			epoch: time.Date(2022, 11, 30, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "dotted date", ref: "gs://b/2021.07.04.md",
			date: "2021-07-04", year: 2021, month: 7, day: 4, fileType: "md",
			epoch: time.Date(2021, 7, 4, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "year month", ref: "gs://b/survey-2020-09.pdf",
			date: "2020-09", year: 2020, month: 9, fileType: "pdf",
			epoch: time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "bare year", ref: "gs://b/usenix_2019_paper.pdf",
			date: "2019", year: 2019, fileType: "pdf",
			epoch: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "invalid day falls through to year month", ref: "gs://b/2023-02-30-x.pdf",
			date: "2023-02", year: 2023, month: 2, fileType: "pdf",
			epoch: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC).Unix(),
		},
		{
			name: "date in directory is ignored", ref: "gs://b/2020-01-01/report.pdf",
			year: 2026, fileType: "pdf", epoch: now.Unix(),
		},
		{
			name: "no date", ref: "gs://b/report.pdf",
			year: 2026, fileType: "pdf", epoch: now.Unix(),
		},
		{
			name: "arxiv id is not a date", ref: "gs://b/2301.12345.pdf",
			year: 2026, fileType: "pdf", epoch: now.Unix(),
		},
		{
			name: "no extension", ref: "gs://b/README",
			year: 2026, epoch: now.Unix(),
		},
		{
			name: "dotfile has no extension", ref: "gs://b/config/.env",
			year: 2026, epoch: now.Unix(),
		},
		{
			name: "dotfile with extension", ref: "gs://b/.notes.md",
			year: 2026, fileType: "md", epoch: now.Unix(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			md := Extract(tc.ref, now)
			if md.Source != tc.ref {
				t.Errorf("Source: got %q", md.Source)
			}
			if md.PublicationDate != tc.date {
				t.Errorf("PublicationDate: got %q, want %q", md.PublicationDate, tc.date)
			}
			if md.PublicationYear != tc.year || md.PublicationMonth != tc.month || md.PublicationDay != tc.day {
				t.Errorf("components: got %d-%d-%d, want %d-%d-%d",
					md.PublicationYear, md.PublicationMonth, md.PublicationDay, tc.year, tc.month, tc.day)
			}
			if md.FileType != tc.fileType {
				t.Errorf("FileType: got %q, want %q", md.FileType, tc.fileType)
			}
			if md.IngestionTimestamp != tc.epoch {
				t.Errorf("IngestionTimestamp: got %d, want %d", md.IngestionTimestamp, tc.epoch)
			}
		})
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Extract("gs://b/2023-05-15_report.pdf", now)
	b := Extract("gs://b/2023-05-15_report.pdf", now.Add(48*time.Hour))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("dated refs must not depend on extraction time: %+v vs %+v", a, b)
	}
}

func TestCleanQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query   string
		cleaned string
		years   []int
	}{
		{"ransomware trends in 2023", "ransomware trends", []int{2023}},
		{"LLM jailbreaks between 2021 and 2023", "LLM jailbreaks", []int{2021, 2023}},
		{"supply chain attacks since 2020?", "supply chain attacks?", []int{2020}},
		{"side channels", "side channels", nil},
		{"in 2023", "in 2023", []int{2023}},
	}

	for _, tc := range tests {
		cleaned, years := CleanQuery(tc.query)
		if cleaned != tc.cleaned {
			t.Errorf("CleanQuery(%q) text = %q, want %q", tc.query, cleaned, tc.cleaned)
		}
		if !reflect.DeepEqual(years, tc.years) {
			t.Errorf("CleanQuery(%q) years = %v, want %v", tc.query, years, tc.years)
		}
	}
}
