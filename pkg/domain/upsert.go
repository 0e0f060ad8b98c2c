package domain

// UpsertOutcome is the result of a property upsert.
type UpsertOutcome int

const (
	UpsertNotFound UpsertOutcome = iota
	UpsertIllegal
	UpsertCreated
	UpsertUpdated
	UpsertDeleted
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertNotFound:
		return "not_found"
	case UpsertIllegal:
		return "illegal"
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
