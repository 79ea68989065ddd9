// Package otpx wraps time-based and random one-time code generation for the
// MFA core. All functions are pure; attempt counting and persistence belong
// to the caller.
package otpx

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30
	// Digits is the code length for TOTP and delivered OTP codes.
	Digits = 6

	// secretSize is the raw TOTP secret length (160 bits per RFC 4226).
	secretSize = 20

	minNumericDigits = 4
	maxNumericDigits = 8
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      1, // accept the immediately adjacent steps (±30s)
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a new random TOTP secret, base32-encoded without
// padding. The value is caller-opaque and must only be stored via the
// secret store, never alongside the factor record in plain form.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// Compute derives the TOTP code for a secret at the given time.
func Compute(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, validateOpts())
	if err != nil {
		return "", fmt.Errorf("failed to compute TOTP code: %w", err)
	}
	return code, nil
}

// Verify reports whether code is valid for secret at the given time,
// tolerating one step of clock skew on either side. It has no side effects
// on failure.
func Verify(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts())
	return err == nil && ok
}

// ProvisioningURI builds the otpauth:// URL an authenticator app consumes,
// in the same key format pquerna/otp generates.
func ProvisioningURI(issuer, account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", fmt.Sprintf("%d", Digits))
	v.Set("period", fmt.Sprintf("%d", Period))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// GenerateNumeric returns a cryptographically random ASCII digit string for
// SMS/email delivery. A digit count outside [4,8] is a programming error and
// panics rather than returning a runtime error.
func GenerateNumeric(digits int) (string, error) {
	if digits < minNumericDigits || digits > maxNumericDigits {
		panic(fmt.Sprintf("otpx: numeric code digits must be in [%d,%d], got %d",
			minNumericDigits, maxNumericDigits, digits))
	}

	code := make([]byte, digits)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate numeric code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
