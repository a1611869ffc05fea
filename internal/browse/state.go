package browse

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/shopfront/internal/catalog"
)

// QueryKind enumerates the mutually exclusive browsing modes.
type QueryKind int

const (
	QueryAll QueryKind = iota
	QueryCategory
	QuerySearch
)

func (k QueryKind) String() string {
	switch k {
	case QueryAll:
		return "all"
	case QueryCategory:
		return "category"
	case QuerySearch:
		return "search"
	default:
		return fmt.Sprintf("QueryKind(%d)", int(k))
	}
}

func (k QueryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Query is the active catalog request. Value holds the category slug or the
// search term and is empty for QueryAll.
type Query struct {
	Kind  QueryKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

func AllProducts() Query {
	return Query{Kind: QueryAll}
}

func ByCategory(slug string) Query {
	return Query{Kind: QueryCategory, Value: slug}
}

func BySearchTerm(term string) Query {
	return Query{Kind: QuerySearch, Value: term}
}

func (q Query) String() string {
	if q.Kind == QueryAll {
		return q.Kind.String()
	}
	return q.Kind.String() + ":" + q.Value
}

// ResultState is the catalog display state. The set of implementations is
// closed: Idle, Loading, Loaded and Failed.
type ResultState interface {
	Status() string
	resultState()
}

type Idle struct{}

// Loading keeps the items that were on screen when the request started.
type Loading struct {
	Previous []catalog.Product
}

type Loaded struct {
	Items []catalog.Product
}

// Failed keeps the previous items so a failed refresh does not blank the list.
type Failed struct {
	Previous []catalog.Product
	Message  string
}

func (Idle) Status() string    { return "idle" }
func (Loading) Status() string { return "loading" }
func (Loaded) Status() string  { return "loaded" }
func (Failed) Status() string  { return "failed" }

func (Idle) resultState()    {}
func (Loading) resultState() {}
func (Loaded) resultState()  {}
func (Failed) resultState()  {}

// Items returns the products a state displays.
func Items(state ResultState) []catalog.Product {
	switch s := state.(type) {
	case Loading:
		return s.Previous
	case Loaded:
		return s.Items
	case Failed:
		return s.Previous
	default:
		return nil
	}
}

type stateJSON struct {
	Status  string            `json:"status"`
	Items   []catalog.Product `json:"items"`
	Message string            `json:"message,omitempty"`
}

// MarshalState renders a state as {"status","items","message"}.
func MarshalState(state ResultState) ([]byte, error) {
	if state == nil {
		state = Idle{}
	}
	out := stateJSON{Status: state.Status(), Items: Items(state)}
	if out.Items == nil {
		out.Items = []catalog.Product{}
	}
	if failed, ok := state.(Failed); ok {
		out.Message = failed.Message
	}
	return json.Marshal(out)
}

// View is the observable snapshot of the machine.
type View struct {
	Query            Query
	SelectedCategory string
	SearchText       string
	State            ResultState
	Categories       []catalog.Category
	Sequence         uint64
}

func (v View) MarshalJSON() ([]byte, error) {
	state, err := MarshalState(v.State)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Query            Query              `json:"query"`
		SelectedCategory string             `json:"selectedCategory"`
		SearchText       string             `json:"searchText"`
		State            json.RawMessage    `json:"state"`
		Categories       []catalog.Category `json:"categories"`
		Sequence         uint64             `json:"sequence"`
	}{
		Query:            v.Query,
		SelectedCategory: v.SelectedCategory,
		SearchText:       v.SearchText,
		State:            state,
		Categories:       v.Categories,
		Sequence:         v.Sequence,
	})
}
