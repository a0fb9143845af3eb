// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// MaxTONAddressLength — максимальная длина адреса TON в любой из допустимых форм.
const MaxTONAddressLength = 67

var tonAddressPrefixes = []string{"EQ", "UQ", "0:", "-1:"}

// IsValidTONAddress проверяет адрес TON: непустой, не длиннее MaxTONAddressLength,
// в user-friendly (EQ, UQ) или raw (0:, -1:) форме.
func IsValidTONAddress(address string) bool {
	s := strings.TrimSpace(address)
	if s == "" || len(s) > MaxTONAddressLength {
		return false
	}

	for _, prefix := range tonAddressPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
