package event

type Classification string

const (
	ClassNew       Classification = "new"
	ClassDuplicate Classification = "duplicate"
	ClassUpdate    Classification = "update"
)

// Classify compares a candidate with the stored active event sharing its
// fingerprint. A nil existing event means the candidate is new.
func Classify(candidate, existing *Event) Classification {
	if existing == nil {
		return ClassNew
	}
	if candidate.Description == existing.Description &&
		candidate.Price == existing.Price &&
		candidate.Location == existing.Location &&
		candidate.Link == existing.Link &&
		candidate.Category == existing.Category &&
		candidate.EndDate == existing.EndDate {
		return ClassDuplicate
	}
	return ClassUpdate
}

// Merge copies the mutable fields of candidate onto existing. Title, start
// date and fingerprint stay as stored.
func Merge(existing, candidate *Event) {
	existing.EndDate = candidate.EndDate
	existing.Category = candidate.Category
	existing.Price = candidate.Price
	existing.Location = candidate.Location
	existing.Link = candidate.Link
	existing.Description = candidate.Description
	if len(candidate.Extra) > 0 {
		existing.Extra = candidate.Extra
	}
}

// Seen tracks fingerprints already handled in one run.
type Seen map[string]struct{}

// Add returns false when fingerprint was already recorded.
func (s Seen) Add(fingerprint string) bool {
	if _, ok := s[fingerprint]; ok {
		return false
	}
	s[fingerprint] = struct{}{}
	return true
}
