package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference generates a unique, human-quotable reference such as
// PAY-1756684800-9F3C21AB.
func NewReference(prefix string) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), token)
}
