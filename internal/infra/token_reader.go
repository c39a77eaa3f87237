package infra

import (
	"context"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// StaticTokenReader stands in for the NFC/QR scanner on desktop: the
// token id is whatever the caller presented, e.g. via --token.
type StaticTokenReader struct {
	id  string
	now func() time.Time
}

// NewStaticTokenReader serves the given token id for every scan.
func NewStaticTokenReader(id string) *StaticTokenReader {
	return &StaticTokenReader{id: strings.TrimSpace(id), now: time.Now}
}

// ReadToken returns the presented token, or a refusal when none was given.
func (r *StaticTokenReader) ReadToken(ctx context.Context, kind domain.TokenKind) (domain.TokenRead, error) {
	if err := ctx.Err(); err != nil {
		return domain.TokenRead{}, err
	}
	if r.id == "" {
		return domain.TokenRead{}, domain.Refused("token.read", "no "+string(kind)+" token presented")
	}
	return domain.TokenRead{ID: r.id, Payload: r.id, Kind: kind, ReadAt: r.now()}, nil
}

var _ domain.TokenReader = (*StaticTokenReader)(nil)
