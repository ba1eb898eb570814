package domain

// Color is an RGB triple associated with an anchor.
type Color [3]uint8

// Anchor is a curated cinematic reference point in VAD+CC space.
type Anchor struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Position Vector `json:"position"`
	Color    Color  `json:"color"`
}

// Match is an anchor paired with its weighted distance to a query vector.
type Match struct {
	Anchor   Anchor  `json:"anchor"`
	Distance float64 `json:"distance"`
}
