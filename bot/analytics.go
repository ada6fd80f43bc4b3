package bot

import (
	"crypto/sha256"
	"fmt"
)

// AnonymizeUserID derives a stable but anonymous identifier from a user
// id and the configured salt.
func AnonymizeUserID(userID int64, salt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", userID, salt)))
	return fmt.Sprintf("%x", sum)[:32]
}
