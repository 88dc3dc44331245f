package tickets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occasio/backend/internal/clock"
)

func TestGenerator_Code(t *testing.T) {
	eventID := uuid.MustParse("6f1c1c53-2f6e-4a55-9d0f-2e1f7f2a9b10")
	userID := uuid.New()
	g := NewGenerator(clock.NewFixed(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	code := g.Code(eventID, userID)

	assert.True(t, strings.HasPrefix(code, "TKT-"+eventID.String()+"-"))
	digest := strings.TrimPrefix(code, "TKT-"+eventID.String()+"-")
	assert.Len(t, digest, 8)
	assert.Equal(t, strings.ToUpper(digest), digest)
	assert.True(t, IsValidCode(code), code)
}

func TestGenerator_CodeIsSalted(t *testing.T) {
	eventID, userID := uuid.New(), uuid.New()
	g := NewGenerator(clock.NewFixed(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		seen[g.Code(eventID, userID)] = struct{}{}
	}
	// Same event, user and timestamp: only the random salt differs.
	assert.Greater(t, len(seen), 190)
}

func TestIsValidCode(t *testing.T) {
	id := uuid.New().String()
	tests := []struct {
		code string
		want bool
	}{
		{"TKT-" + id + "-0A1B2C3D", true},
		{"TKT-" + id + "-0a1b2c3d", false},
		{"TKT-" + id + "-0A1B2C3", false},
		{"TKT-42-0A1B2C3D", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidCode(tt.code), tt.code)
	}
}

func TestEncoder_Encode(t *testing.T) {
	enc := NewEncoder()

	uri, err := enc.Encode("TKT-" + uuid.New().String() + "-0A1B2C3D")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, QRSize, img.Bounds().Dx())
	assert.Equal(t, QRSize, img.Bounds().Dy())
}

func TestEncoder_EncodeErrors(t *testing.T) {
	enc := NewEncoder()

	_, err := enc.Encode("")
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))

	_, err = enc.Encode(strings.Repeat("X", 5000))
	require.True(t, errors.As(err, &encErr))
	assert.Error(t, encErr.Unwrap())
}
