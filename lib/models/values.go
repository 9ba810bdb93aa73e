package models

import (
	"crypto/sha1"
	"fmt"
)

// DigestEndpoint derives the stable subscription id for a push
// endpoint. Save and remove must address the same record, so the same
// endpoint always maps to the same id.
func DigestEndpoint(endpoint string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(endpoint)))
}
