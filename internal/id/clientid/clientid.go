// Package clientid generates client IDs of the form
// <slug>-<unix seconds>-<6 lowercase alphanumerics>.
package clientid

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
)

const (
	alphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLen    = 6
	maxSlugLen   = 40
	fallbackSlug = "site"
)

// Generator creates client IDs from business names.
type Generator struct {
	clock  clock.Clock
	random io.Reader
}

// New creates a Generator using crypto/rand. A nil clock selects the system clock.
func New(clk clock.Clock) *Generator {
	return NewWithSource(clk, rand.Reader)
}

// NewWithSource uses random as the entropy source for the suffix.
func NewWithSource(clk clock.Clock, random io.Reader) *Generator {
	if clk == nil {
		clk = clock.New()
	}
	return &Generator{clock: clk, random: random}
}

// NewClientID returns a fresh ID derived from businessName.
func (g *Generator) NewClientID(businessName string) (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", fmt.Errorf("generate client id suffix: %w", err)
	}
	ts := strconv.FormatInt(g.clock.Now().Unix(), 10)
	return Slugify(businessName) + "-" + ts + "-" + suffix, nil
}

func (g *Generator) suffix() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(alphabet)))
	for range suffixLen {
		n, err := rand.Int(g.random, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9] into a single hyphen. Empty results fall back to "site".
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
