package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateHoldID returns a globally unique, human-legible hold identifier,
// e.g. RES_20250901143205a1b2c3d4.
func GenerateHoldID() string {
	return fmt.Sprintf("RES_%s%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}

// GenerateTicketSerial returns a unique serial for a single ticket unit,
// e.g. TCK20250901143205a1b2c3d4.
func GenerateTicketSerial() string {
	return fmt.Sprintf("TCK%s%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}

// GenerateID creates a short prefixed identifier for catalog entities.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
