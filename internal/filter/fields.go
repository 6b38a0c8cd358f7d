package filter

import (
	"encoding/json"
	"strings"

	"newswatch/internal/models"
)

// Schema fields a leaf constraint may reference.
const (
	FieldSource    = "source"
	FieldCountry   = "country"
	FieldLanguage  = "language"
	FieldCategory  = "category"
	FieldCompanyID = "company_id"
	FieldTopic     = "topic"
)

var knownFields = map[string]struct{}{
	FieldSource:    {},
	FieldCountry:   {},
	FieldLanguage:  {},
	FieldCategory:  {},
	FieldCompanyID: {},
	FieldTopic:     {},
}

// KnownField reports whether the schema defines field.
func KnownField(field string) bool {
	_, ok := knownFields[strings.ToLower(strings.TrimSpace(field))]
	return ok
}

// Fields holds one content item's attribute values keyed by schema field.
type Fields map[string][]string

func (f Fields) values(field string) []string {
	if f == nil {
		return nil
	}
	return f[strings.ToLower(strings.TrimSpace(field))]
}

// FieldsFromArticle projects an article onto the filter schema.
func FieldsFromArticle(a models.Article) Fields {
	f := Fields{}
	if a.Source != "" {
		f[FieldSource] = []string{a.Source}
	}
	if a.Country != "" {
		f[FieldCountry] = []string{a.Country}
	}
	if a.Language != "" {
		f[FieldLanguage] = []string{a.Language}
	}
	if a.Category != "" {
		f[FieldCategory] = []string{a.Category}
	}
	if ids := decodeStrings(a.CompanyIDs); len(ids) > 0 {
		f[FieldCompanyID] = ids
	}
	if topics := decodeStrings(a.Topics); len(topics) > 0 {
		f[FieldTopic] = topics
	}
	return f
}

func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
