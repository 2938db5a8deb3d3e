package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/xlzd/gotp"
)

const CodeLength = 6

// CodeGenerator produces the code sent to the user.
type CodeGenerator interface {
	GenerateCode() (string, error)
}

// CodeGeneratorFunc adapts a function to CodeGenerator.
type CodeGeneratorFunc func() (string, error)

func (f CodeGeneratorFunc) GenerateCode() (string, error) {
	return f()
}

// RandomCodeGenerator draws each digit independently and uniformly. Leading
// zeros are kept, so codes are always CodeLength characters.
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) GenerateCode() (string, error) {
	digits := make([]byte, CodeLength)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// TotpCodeGenerator derives each code from a fresh random secret with TOTP.
// The secret is thrown away; the code is stored and compared like any other.
type TotpCodeGenerator struct {
	Period uint
	now    func() time.Time
}

func NewTotpCodeGenerator(period uint) *TotpCodeGenerator {
	if period == 0 {
		period = 300
	}
	return &TotpCodeGenerator{Period: period, now: time.Now}
}

func (g *TotpCodeGenerator) GenerateCode() (string, error) {
	secret := gotp.RandomSecret(32)
	code, err := totp.GenerateCodeCustom(secret, g.now().UTC(), totp.ValidateOpts{
		Period:    g.Period,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}
