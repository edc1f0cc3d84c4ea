package common

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateReference returns a unique ledger reference such as "DEP-3F9A0C1B2D4E5F60".
func GenerateReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
