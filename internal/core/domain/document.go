package domain

import "strconv"

// Regulatory domains a document can belong to. labeling and ingredients are
// the checkable domains; restricted_ingredients is an auxiliary lookup
// partition of flagged-substance records.
const (
	DomainLabeling              = "labeling"
	DomainIngredients           = "ingredients"
	DomainRestrictedIngredients = "restricted_ingredients"
)

// identityPrefixLen is the number of leading content characters that take
// part in a document's identity key.
const identityPrefixLen = 200

// Metadata carries the partition and attribution keys of a regulatory
// passage. Country and Domain select the partition; Source, Title and Page
// attribute the passage in prompts and dedup keys.
type Metadata struct {
	Country string `json:"country"`
	Domain  string `json:"domain"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	Page    int    `json:"page,omitempty"`
}

// Document is one regulatory passage. Documents are written by an external
// ingestion job and are read-only here.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// IdentityKey identifies a passage for dedup. Two documents with the same
// source, page and content prefix are the same passage even when they arrive
// through different retrieval channels.
func (d Document) IdentityKey() string {
	content := d.Content
	if len(content) > identityPrefixLen {
		content = content[:identityPrefixLen]
	}
	return d.Metadata.Source + "\x1f" + strconv.Itoa(d.Metadata.Page) + "\x1f" + content
}

func IsCheckableDomain(domain string) bool {
	return domain == DomainLabeling || domain == DomainIngredients
}
