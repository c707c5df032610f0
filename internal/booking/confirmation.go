package booking

import (
	"crypto/rand"
	"math/big"
)

// Ambiguous characters (0/O, 1/I/L) are left out so the code survives
// being read over the phone.
const confirmationAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewConfirmationNumber generates a short human-readable booking
// reference. It is a courtesy identifier for email and front-desk use,
// not a primary key; uniqueness is best-effort.
func NewConfirmationNumber() string {
	code := make([]byte, 6)
	max := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a fixed character rather than panic mid-booking.
			code[i] = confirmationAlphabet[0]
			continue
		}
		code[i] = confirmationAlphabet[n.Int64()]
	}
	return "SP-" + string(code)
}
