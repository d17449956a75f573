package model

import "strings"

// Token is a tracked token from the directory.
type Token struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

// AddressKey returns the case-insensitive lookup key for an address.
func AddressKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
