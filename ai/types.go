package ai

// ExtractedKind distinguishes entity extractions from relation extractions.
type ExtractedKind string

const (
	// KindEntity marks a named entity or abstract concept.
	KindEntity ExtractedKind = "entity"
	// KindRelation marks a subject-predicate-object relation.
	KindRelation ExtractedKind = "relation"
)

// ExtractedConcept represents an entity or relation identified in text.
type ExtractedConcept struct {
	// Label is the concept identifier in lowercase, 1-3 words, singular form.
	// For relations it is the predicate. Example: "eiffel tower", "located in".
	Label string

	// Kind is either KindEntity or KindRelation.
	Kind ExtractedKind

	// Subject and Object are set for relations only. They must reference
	// entity labels extracted from the same text.
	Subject string
	Object  string

	// Importance is a score from 1-10 indicating how central this concept
	// is to understanding the text. Higher scores = more important.
	Importance int
}

// EntityKinds lists the categories the extraction prompt steers entities
// toward. Extraction is not rejected for labels outside this list; the
// list exists to keep the LLM output stable.
var EntityKinds = []string{
	"abstract_concept",
	"activity",
	"event",
	"location",
	"measurement",
	"occupation",
	"organization",
	"person",
	"process",
	"software",
	"technology",
	"time",
	"tool",
	"work_of_art",
}
