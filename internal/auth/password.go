// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"crypto/rand"
	"math/big"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password policy.
const (
	MinPasswordLength       = 6
	GeneratedPasswordLength = 8
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random alphanumeric password of length n.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		return "", oops.Code("PASSWORD_GENERATE_FAILED").Errorf("length must be positive, got %d", n)
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", oops.Code("PASSWORD_GENERATE_FAILED").Wrap(err)
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}

func tooShort(password string) bool {
	return utf8.RuneCountInString(password) < MinPasswordLength
}
