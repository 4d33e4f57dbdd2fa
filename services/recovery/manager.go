package recovery

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Alphabet omits I, O, 0 and 1. Its 32 symbols give 5 bits per character.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	groupSize  = 4
	groupCount = 3
	codeLength = groupSize * groupCount

	DefaultCount = 10
	MaxCount     = 100
)

var (
	ErrNoMatch      = errors.New("recovery code does not match any unused code")
	ErrInvalidCount = fmt.Errorf("recovery code count must be between 1 and %d", MaxCount)
)

// Bundle pairs generated plaintext codes with their hashes. Only Hashed is
// ever persisted.
type Bundle struct {
	Plain  []string
	Hashed []string
}

// Entry is a stored code as seen by Redeem.
type Entry struct {
	Hash string
	Used bool
}

type Manager struct {
	cost   int
	random io.Reader
}

func NewManager(cost int) *Manager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Manager{cost: cost, random: rand.Reader}
}

// Generate creates count codes of the form XXXX-XXXX-XXXX, 60 bits each.
func (m *Manager) Generate(count int) (*Bundle, error) {
	if count < 1 || count > MaxCount {
		return nil, ErrInvalidCount
	}

	bundle := &Bundle{
		Plain:  make([]string, 0, count),
		Hashed: make([]string, 0, count),
	}
	seen := make(map[string]bool, count)

	for len(bundle.Plain) < count {
		raw, err := m.randomCode()
		if err != nil {
			return nil, err
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true

		hash, err := bcrypt.GenerateFromPassword([]byte(raw), m.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash recovery code: %w", err)
		}

		bundle.Plain = append(bundle.Plain, Format(raw))
		bundle.Hashed = append(bundle.Hashed, string(hash))
	}

	return bundle, nil
}

// Redeem returns the index of the unused entry matching code. Marking it
// used is the caller's job and must be atomic with granting access.
func (m *Manager) Redeem(code string, entries []Entry) (int, error) {
	normalized := Normalize(code)
	if !valid(normalized) {
		return -1, ErrNoMatch
	}

	for i, entry := range entries {
		if entry.Used {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(normalized)) == nil {
			return i, nil
		}
	}
	return -1, ErrNoMatch
}

func (m *Manager) randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// Normalize upper-cases code and drops spaces and dashes.
func Normalize(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Format splits a normalized code into dash-separated groups.
func Format(code string) string {
	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func valid(normalized string) bool {
	if len(normalized) != codeLength {
		return false
	}
	for _, r := range normalized {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
