package token

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryThreshold is the remaining lifetime below which a token counts as
// expiring soon.
const DefaultExpiryThreshold = 5 * time.Minute

// segmentParser decodes base64url segments, tolerating padding.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

type timingClaims struct {
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

// Validator evaluates tokens against a clock. The zero value uses time.Now.
type Validator struct {
	Now func() time.Time
}

var defaultValidator Validator

// Validate reports whether t is structurally valid and unexpired.
func Validate(t string) bool { return defaultValidator.Validate(t) }

// Expiration returns the exp claim of t.
func Expiration(t string) (time.Time, bool) { return defaultValidator.Expiration(t) }

// IsExpiringSoon reports whether t expires within threshold of now.
func IsExpiringSoon(t string, threshold time.Duration) bool {
	return defaultValidator.IsExpiringSoon(t, threshold)
}

func (v Validator) now() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return now().Truncate(time.Millisecond)
}

// Validate returns false when t does not have three segments, when its payload
// cannot be decoded as a JSON object, when iat or exp is missing, or when exp is
// not after the current time.
func (v Validator) Validate(t string) bool {
	claims, ok := decodeTiming(t)
	if !ok {
		return false
	}
	return claims.ExpiresAt.Time.After(v.now())
}

// Expiration returns the exp claim, or false when t is malformed.
func (v Validator) Expiration(t string) (time.Time, bool) {
	claims, ok := decodeTiming(t)
	if !ok {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpiringSoon returns true when the remaining lifetime of t is strictly
// below threshold. A token whose expiration cannot be determined is treated as
// already expiring.
func (v Validator) IsExpiringSoon(t string, threshold time.Duration) bool {
	exp, ok := v.Expiration(t)
	if !ok {
		return true
	}
	return exp.Sub(v.now()) < threshold
}

// Remaining returns how long t stays valid, or zero when it is malformed or
// already expired.
func (v Validator) Remaining(t string) time.Duration {
	exp, ok := v.Expiration(t)
	if !ok {
		return 0
	}
	if d := exp.Sub(v.now()); d > 0 {
		return d
	}
	return 0
}

func decodeTiming(t string) (timingClaims, bool) {
	parts := strings.Split(t, ".")
	if len(parts) != 3 {
		return timingClaims{}, false
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return timingClaims{}, false
	}

	var claims timingClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return timingClaims{}, false
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return timingClaims{}, false
	}

	return claims, true
}

// Fingerprint masks t for logs, keeping only a short head and tail.
func Fingerprint(t string) string {
	if t == "" {
		return ""
	}
	if len(t) <= 12 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
