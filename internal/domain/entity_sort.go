package domain

// Default paging used by the content API and the entity picker endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination is the page/pageSize pair accepted by the read endpoints.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize fills defaults and clamps the page size.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// LimitOffset converts the page into store limit/offset values.
func (p Pagination) LimitOffset() (int, int) {
	n := p.Normalize()
	return n.PageSize, (n.Page - 1) * n.PageSize
}

// FindOptions is the request forwarded to the document store.
type FindOptions struct {
	// Select projects the listed attributes. id and documentId are always returned.
	Select  []string
	Filters FilterTree
	Limit   int
	Offset  int
	// Populate is forwarded to stores that expand relations themselves.
	Populate any
}

// ResolveOptions carries nested population instructions for a pointer target.
type ResolveOptions struct {
	Populate any
}

// Query is a content API list request.
type Query struct {
	Filters    FilterTree
	Populate   PopulateSpec
	Pagination Pagination
	// Status restricts rows to published or draft versions; empty keeps both.
	Status string
}

// ReverseQuery locates entities of TargetModel whose TargetField points at
// {LookupType, LookupID}.
type ReverseQuery struct {
	TargetModel  string `json:"targetModel"`
	TargetField  string `json:"targetField"`
	LookupType   string `json:"lookupType"`
	LookupID     string `json:"lookupId"`
	DisplayField string `json:"displayField,omitempty"`
}

// Publication states accepted by the content API.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)
