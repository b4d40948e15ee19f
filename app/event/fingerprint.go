package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/cases"
)

// Fingerprint identifies an event within a source. Title case and
// whitespace do not affect it.
func Fingerprint(title, startDate, sourceID string) string {
	key := cases.Fold().String(CollapseSpace(title))
	content := fmt.Sprintf("%s|%s|%s", key, startDate, sourceID)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
