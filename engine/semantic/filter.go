package semantic

import pb "github.com/qdrant/go-client/qdrant"

// MatchKind selects how a condition matches its payload field: Keyword is an
// exact match against a keyword-indexed field, Text is tokenized/partial
// matching against a text-indexed field.
type MatchKind int

const (
	MatchKeyword MatchKind = iota
	MatchText
)

// Condition is a single field predicate.
type Condition struct {
	Field string
	Kind  MatchKind
	Value string
}

// Keyword builds an exact-match condition.
func Keyword(field, value string) Condition {
	return Condition{Field: field, Kind: MatchKeyword, Value: value}
}

// Text builds a tokenized text-match condition.
func Text(field, value string) Condition {
	return Condition{Field: field, Kind: MatchText, Value: value}
}

// Filter restricts the candidate set. Must conditions are conjunctive,
// Should conditions disjunctive; both may be combined.
type Filter struct {
	Must   []Condition
	Should []Condition
}

// AnyOf builds a disjunctive filter.
func AnyOf(conds ...Condition) *Filter {
	return &Filter{Should: conds}
}

// AllOf builds a conjunctive filter.
func AllOf(conds ...Condition) *Filter {
	return &Filter{Must: conds}
}

func (f *Filter) proto() *pb.Filter {
	if f == nil || (len(f.Must) == 0 && len(f.Should) == 0) {
		return nil
	}
	out := &pb.Filter{}
	for _, c := range f.Must {
		out.Must = append(out.Must, c.proto())
	}
	for _, c := range f.Should {
		out.Should = append(out.Should, c.proto())
	}
	return out
}

func (c Condition) proto() *pb.Condition {
	var match *pb.Match
	switch c.Kind {
	case MatchText:
		match = &pb.Match{MatchValue: &pb.Match_Text{Text: c.Value}}
	default:
		match = &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: c.Value}}
	}
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   c.Field,
				Match: match,
			},
		},
	}
}
