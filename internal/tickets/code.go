// Package tickets issues ticket codes and renders them as QR images.
package tickets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/occasio/backend/internal/clock"
)

// CodePrefix starts every ticket code.
const CodePrefix = "TKT"

var codePattern = regexp.MustCompile(`^TKT-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-[0-9A-F]{8}$`)

// Generator derives ticket codes of the form TKT-{eventId}-{8 uppercase hex}.
type Generator struct {
	clock  clock.Clock
	random func(b []byte) (int, error)
}

// NewGenerator creates a ticket code generator using crypto/rand for the salt.
func NewGenerator(c clock.Clock) *Generator {
	if c == nil {
		c = clock.NewSystem()
	}
	return &Generator{clock: c, random: rand.Read}
}

// Code returns a new ticket code for the registration. Uniqueness is probabilistic;
// the unique index on ticket_code is the final guard.
func (g *Generator) Code(eventID, userID uuid.UUID) string {
	salt := make([]byte, 4)
	if _, err := g.random(salt); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to a fresh uuid's bytes.
		u := uuid.New()
		copy(salt, u[:4])
	}
	ts := strconv.FormatInt(g.clock.Now().UnixNano(), 36)
	input := fmt.Sprintf("%s-%s-%s-%s", eventID, userID, ts, hex.EncodeToString(salt))
	sum := sha256.Sum256([]byte(input))
	digest := strings.ToUpper(hex.EncodeToString(sum[:])[:8])
	return fmt.Sprintf("%s-%s-%s", CodePrefix, eventID, digest)
}

// IsValidCode reports whether code has the ticket code format.
func IsValidCode(code string) bool {
	return codePattern.MatchString(code)
}
