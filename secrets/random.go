package secrets

import (
	crand "crypto/rand"
	"math/big"
)

const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// RandomString returns a URL-safe random string of n characters, suitable
// for cookie keys and XSRF tokens.
func RandomString(n int) string {
	max := big.NewInt(int64(len(randomAlphabet)))
	b := make([]byte, n)
	for i := range b {
		r, err := crand.Int(crand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = randomAlphabet[r.Int64()]
	}
	return string(b)
}
