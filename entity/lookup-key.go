package entity

import (
	"strconv"
	"strings"
)

// LookupKind tags the variants of LookupKey.
type LookupKind int

const (
	LookupById LookupKind = iota
	LookupByPhone
	LookupByUsername
)

// LookupKey is a classified account identifier as typed by an operator:
// a numeric identity id, a phone number, or a @username. Classification
// happens once here; consumers dispatch on Kind instead of re-sniffing
// the raw string.
type LookupKey struct {
	Kind     LookupKind
	Id       int64
	Phone    string
	Username string
}

// ClassifyLookup turns raw operator input into a LookupKey.
// Digits only -> identity id; leading + or a digit string longer than an
// id would reasonably be, starting with a dial prefix -> phone;
// anything else -> username (leading @ stripped).
func ClassifyLookup(raw string) LookupKey {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "@") {
		return LookupKey{Kind: LookupByUsername, Username: strings.TrimPrefix(s, "@")}
	}
	if strings.HasPrefix(s, "+") && isDigits(s[1:]) {
		return LookupKey{Kind: LookupByPhone, Phone: s}
	}
	if isDigits(s) {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return LookupKey{Kind: LookupById, Id: id}
		}
	}
	return LookupKey{Kind: LookupByUsername, Username: s}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
