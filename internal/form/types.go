// internal/form/types.go
package form

// FieldKind classifies how a discovered input must be interacted with.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindTel      FieldKind = "tel"
	KindDate     FieldKind = "date"
	KindTextarea FieldKind = "textarea"
	KindOther    FieldKind = "other"
)

// FieldDescriptor locates one form question and records how to fill it.
// Descriptors hold re-resolvable XPath locators, never live element handles:
// the target page reloads fully between rows, so any captured handle would be
// stale by the time it is used.
type FieldDescriptor struct {
	// InputLocator matches the primitive input (or textarea) of the question.
	InputLocator string
	// ContainerLocator matches the question container; the date filler uses it
	// to re-query fresh child inputs after a reload.
	ContainerLocator string
	// Kind drives the fill strategy.
	Kind FieldKind
	// Ordinal is the 1-based position among discovered questions.
	Ordinal int
	// Label is the original on-screen heading text.
	Label string
}

// FieldMap maps normalized question labels to their descriptors. Built once
// per run by the Mapper and read-only during row iteration.
type FieldMap map[string]FieldDescriptor

// KindFromType maps an input's type attribute (or tag name) to a FieldKind.
func KindFromType(t string) FieldKind {
	switch t {
	case "text":
		return KindText
	case "email":
		return KindEmail
	case "tel":
		return KindTel
	case "date":
		return KindDate
	case "textarea":
		return KindTextarea
	default:
		return KindOther
	}
}
