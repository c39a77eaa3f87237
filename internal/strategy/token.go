package strategy

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Token gates a session on a physical token scan.
//
// With gateStart set a scan (any token of the kind) is required to start.
// Stopping always requires a scan; when the profile stores an unlock token
// id only that token is accepted. A failed scan leaves the session running.
type Token struct {
	deps      *Deps
	id        string
	name      string
	kind      domain.TokenKind
	gateStart bool
}

// NewToken creates the nfc/qr strategy that scans to start and to stop.
func NewToken(d *Deps, kind domain.TokenKind) *Token {
	return &Token{deps: d, id: string(kind), name: tokenLabel(kind), kind: kind, gateStart: true}
}

// NewTokenManual creates the nfc-manual/qr-manual strategy: free start, scan to stop.
func NewTokenManual(d *Deps, kind domain.TokenKind) *Token {
	return &Token{deps: d, id: string(kind) + "-manual", name: tokenLabel(kind) + " + Manual", kind: kind}
}

func tokenLabel(kind domain.TokenKind) string {
	switch kind {
	case domain.TokenNFC:
		return "NFC Tags"
	case domain.TokenQR:
		return "QR Codes"
	}
	return string(kind)
}

func (t *Token) ID() string   { return t.id }
func (t *Token) Name() string { return t.name }

func (t *Token) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	op := t.id + ".start"
	if t.gateStart && !req.ForceStarted {
		if err := t.deps.verifyToken(ctx, op, t.kind, ""); err != nil {
			return Outcome{}, err
		}
	}
	return t.deps.begin(ctx, op, req, 0)
}

func (t *Token) Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error) {
	op := t.id + ".stop"
	if err := t.deps.verifyToken(ctx, op, t.kind, profile.UnlockTokenID); err != nil {
		return Outcome{}, err
	}
	return t.deps.finish(ctx, op, session, profile)
}

// TokenTimer is token-gated with an automatic stop after a duration.
// An early stop needs a matching scan.
type TokenTimer struct {
	deps *Deps
	kind domain.TokenKind
}

// NewTokenTimer creates the nfc-timer/qr-timer strategy.
func NewTokenTimer(d *Deps, kind domain.TokenKind) *TokenTimer {
	return &TokenTimer{deps: d, kind: kind}
}

func (t *TokenTimer) ID() string   { return string(t.kind) + "-timer" }
func (t *TokenTimer) Name() string { return tokenLabel(t.kind) + " + Timer" }

func (t *TokenTimer) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	op := t.ID() + ".start"
	dur, err := t.deps.duration(req)
	if err != nil {
		return Outcome{}, err
	}
	if dur == 0 {
		return needsUI(ViewDurationPicker, req.Profile.ID, "choose how long to block"), nil
	}
	if !req.ForceStarted {
		if err := t.deps.verifyToken(ctx, op, t.kind, ""); err != nil {
			return Outcome{}, err
		}
	}
	return t.deps.begin(ctx, op, req, dur)
}

func (t *TokenTimer) Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error) {
	op := t.ID() + ".stop"
	if err := t.deps.verifyToken(ctx, op, t.kind, profile.UnlockTokenID); err != nil {
		return Outcome{}, fmt.Errorf("early stop: %w", err)
	}
	return t.deps.finish(ctx, op, session, profile)
}

var (
	_ Strategy = (*Token)(nil)
	_ Strategy = (*TokenTimer)(nil)
)
