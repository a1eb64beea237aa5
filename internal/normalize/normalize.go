// Package normalize transforms raw upstream records into the fixed,
// ordered output schema. Every rule degrades to "leave blank / leave
// unchanged" on missing or malformed input; normalization never errors and
// never drops a row.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
)

// Raw field names read by the normalizer. Everything else in a RawRecord is
// carried only by the raw export.
const (
	fieldName             = "name"
	fieldCompany          = "maison"
	fieldContract         = "contract"
	fieldDescription      = "description"
	fieldCity             = "city"
	fieldIndustry         = "functionFilter"
	fieldLevel            = "fullTimePartTime"
	fieldLink             = "link"
	fieldSalary           = "salary"
	fieldProfile          = "profile"
	fieldResponsibilities = "jobResponsabilities" // upstream's spelling
)

// Columns is the canonical output column order. The six CMS metadata
// columns are always blank; downstream imports expect them to exist.
var Columns = []string{
	"Name",
	"Slug",
	"Collection ID",
	"Locale ID",
	"Item ID",
	"Created On",
	"Updated On",
	"Published On",
	"Archived",
	"Draft",
	"Company",
	"Type",
	"Description",
	"Location",
	"Industry",
	"Level",
	"Apply URL",
	"Salary Range",
}

// Record is one normalized row. Fields absent in the source stay empty,
// never null or omitted.
type Record struct {
	Name        string
	Slug        string
	Company     string
	Type        string
	Description string
	Location    string
	Industry    string
	Level       string
	ApplyURL    string
	SalaryRange string
}

// Row returns the record's cells in Columns order.
func (r Record) Row() []string {
	return []string{
		r.Name,
		r.Slug,
		"", // Collection ID
		"", // Locale ID
		"", // Item ID
		"", // Created On
		"", // Updated On
		"", // Published On
		"", // Archived
		"", // Draft
		r.Company,
		r.Type,
		r.Description,
		r.Location,
		r.Industry,
		r.Level,
		r.ApplyURL,
		r.SalaryRange,
	}
}

// Table is the normalized counterpart of a harvest.RawTable, same order,
// same length.
type Table []Record

// Config carries the highlight marker pair the fetcher requested, so the
// normalizer can strip it back out of the description text.
type Config struct {
	HighlightPreTag  string
	HighlightPostTag string
}

func (c Config) withDefaults() Config {
	if c.HighlightPreTag == "" {
		c.HighlightPreTag = "__ais-highlight__"
	}
	if c.HighlightPostTag == "" {
		c.HighlightPostTag = "__/ais-highlight__"
	}
	return c
}

// Normalizer applies the normalization rules. It is a pure function of its
// input: no network access, deterministic given identical raw content.
type Normalizer struct {
	cfg Config
}

// New builds a Normalizer.
func New(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg.withDefaults()}
}

// Normalize maps every raw record onto exactly one normalized record.
func (n *Normalizer) Normalize(raw harvest.RawTable) Table {
	out := make(Table, 0, len(raw))
	for _, rec := range raw {
		out = append(out, n.normalizeRecord(rec))
	}
	return out
}

func (n *Normalizer) normalizeRecord(rec harvest.RawRecord) Record {
	// Encoding repair first; every later rule reads the repaired values.
	name := RepairEncoding(rec.String(fieldName))
	city := RepairEncoding(rec.String(fieldCity))
	company := rec.String(fieldCompany)
	description := RepairEncoding(rec.String(fieldDescription))
	profile := RepairEncoding(rec.String(fieldProfile))
	responsibilities := RepairEncoding(rec.String(fieldResponsibilities))

	salary := renderValue(rec[fieldSalary])
	if _, isString := rec[fieldSalary].(string); isString {
		salary = RepairEncoding(salary)
	}

	merged := mergeDescription(profile, responsibilities, description)
	merged = n.stripHighlightTags(merged)
	merged = guardFormulaInjection(merged)

	return Record{
		Name:        name,
		Slug:        deriveSlug(company, name, city),
		Company:     company,
		Type:        rec.String(fieldContract),
		Description: merged,
		Location:    city,
		Industry:    rec.String(fieldIndustry),
		Level:       rec.String(fieldLevel),
		ApplyURL:    rec.String(fieldLink),
		SalaryRange: salary,
	}
}

// mergeDescription concatenates the profile, responsibilities, and
// description sub-fields, in that order, each preceded by an uppercase
// section label. Absent sub-fields contribute nothing. When the record has
// no separate sub-fields the description passes through unlabeled.
func mergeDescription(profile, responsibilities, description string) string {
	profile = strings.TrimSpace(profile)
	responsibilities = strings.TrimSpace(responsibilities)
	description = strings.TrimSpace(description)

	if profile == "" && responsibilities == "" {
		return description
	}

	var blocks []string
	if profile != "" {
		blocks = append(blocks, "PROFILE:\n"+profile)
	}
	if responsibilities != "" {
		blocks = append(blocks, "RESPONSIBILITIES:\n"+responsibilities)
	}
	if description != "" {
		blocks = append(blocks, "DESCRIPTION:\n"+description)
	}
	return strings.Join(blocks, "\n\n")
}

// stripHighlightTags removes the literal marker tokens the search request
// asked the upstream to wrap matched terms in.
func (n *Normalizer) stripHighlightTags(s string) string {
	s = strings.ReplaceAll(s, n.cfg.HighlightPreTag, "")
	return strings.ReplaceAll(s, n.cfg.HighlightPostTag, "")
}

// guardFormulaInjection prefixes an apostrophe when the text would
// otherwise be interpreted as a formula by spreadsheet software opening the
// exported CSV. It runs after tag stripping so a marker can never mask a
// leading formula character.
func guardFormulaInjection(s string) string {
	if strings.HasPrefix(s, "=") || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return "'" + s
	}
	return s
}

// renderValue projects an arbitrary raw value into a cell. Strings pass
// through verbatim (the salary rule: no structural parsing at this layer);
// anything else becomes canonical JSON, which is deterministic because
// encoding/json sorts map keys.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
