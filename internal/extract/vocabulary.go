package extract

import "strings"

// Word buckets, checked in this order.
const (
	BucketArchitecturalElement = "architectural_element"
	BucketRoomType             = "room_type"
	BucketMaterial             = "material"
	BucketDimension            = "dimension"
	BucketGeneralText          = "general_text"
)

// BucketOrder is the membership check order used by Vocabulary.Classify.
var BucketOrder = []string{
	BucketArchitecturalElement,
	BucketRoomType,
	BucketMaterial,
	BucketDimension,
}

// Vocabulary holds the word sets for each semantic bucket.
type Vocabulary map[string]map[string]struct{}

// NewVocabulary builds a Vocabulary from word lists keyed by bucket name.
// Words are lowercased.
func NewVocabulary(lists map[string][]string) Vocabulary {
	v := make(Vocabulary, len(lists))
	for bucket, words := range lists {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
		v[bucket] = set
	}
	return v
}

// Classify returns the first bucket containing word, else general_text.
func (v Vocabulary) Classify(word string) string {
	w := strings.ToLower(word)
	for _, bucket := range BucketOrder {
		if _, ok := v[bucket][w]; ok {
			return bucket
		}
	}
	return BucketGeneralText
}

// DefaultWordLists are the built-in bucket contents.
var DefaultWordLists = map[string][]string{
	BucketArchitecturalElement: {
		"door", "doors", "window", "windows", "wall", "walls", "ceiling", "floor",
		"stair", "stairs", "column", "beam", "roof", "partition", "frame",
		"opening", "railing", "ramp", "canopy", "soffit", "parapet", "slab",
		"footing", "foundation", "header", "lintel", "sill", "jamb", "casework",
		"millwork", "elevator", "shaft", "chase", "curb", "louver",
	},
	BucketRoomType: {
		"bedroom", "kitchen", "bathroom", "bath", "office", "lobby", "corridor",
		"closet", "storage", "mechanical", "electrical", "restroom", "toilet",
		"conference", "break", "vestibule", "entry", "garage", "laundry",
		"living", "dining", "utility", "janitor", "reception", "hall", "den",
		"pantry", "suite", "classroom", "lounge",
	},
	BucketMaterial: {
		"concrete", "steel", "wood", "gypsum", "glass", "brick", "tile", "paint",
		"carpet", "vinyl", "stone", "granite", "marble", "aluminum", "plywood",
		"drywall", "masonry", "insulation", "laminate", "acoustic", "epoxy",
		"stucco", "timber", "metal", "plaster", "terrazzo", "rubber", "quartz",
	},
	BucketDimension: {
		"width", "height", "length", "depth", "thickness", "typ", "typical",
		"min", "max", "clear", "dia", "diameter", "radius", "elevation", "level",
		"inch", "inches", "feet", "mm", "cm", "meter", "meters", "aff", "nts",
		"scale", "equal",
	},
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(DefaultWordLists)
}
