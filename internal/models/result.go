package models

// Catalog identifies one of the two remote movie pools.
type Catalog string

const (
	CatalogGeneral Catalog = "general"
	CatalogAnime   Catalog = "anime"
)

// Catalogs lists every catalog in fetch order.
var Catalogs = []Catalog{CatalogGeneral, CatalogAnime}

func (c Catalog) Valid() bool {
	return c == CatalogGeneral || c == CatalogAnime
}

// ResultItem is the normalized movie the swipe queue operates on.
type ResultItem struct {
	Title     string  `json:"title"`
	Desc      string  `json:"desc"`
	Image     string  `json:"image"`
	MatchRate int     `json:"matchRate"`
	TMDBID    int     `json:"tmdbId"`
	Catalog   Catalog `json:"catalog"`
}

// Interaction is what a user did with an item.
type Interaction string

const (
	InteractionLike    Interaction = "like"
	InteractionDislike Interaction = "dislike"
	InteractionSkip    Interaction = "skip"
)

func (i Interaction) Valid() bool {
	return i == InteractionLike || i == InteractionDislike || i == InteractionSkip
}
