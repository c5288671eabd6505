package goClerk

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/jwt"
)

type cachedToken struct {
	raw    string
	claims *jwt.SessionClaims
}

type tokenResult struct {
	sessionID string
	token     cachedToken
}

// SessionToken returns a session JWT for the active session. Cached tokens
// are served until Config.SessionToken.RefreshLeeway before they expire;
// concurrent callers asking for the same token share one request.
//
// The cache is dropped by SignOut and whenever the active session changes.
func (e *Engine) SessionToken(ctx context.Context, opts TokenOptions) (string, error) {
	tok, err := e.sessionToken(ctx, opts)
	if err != nil {
		return "", err
	}
	return tok.raw, nil
}

// SessionClaims is like SessionToken but returns the decoded claims as well.
// The claims are only verified when Config.SessionToken.PublicKeyPEM is set.
func (e *Engine) SessionClaims(ctx context.Context, opts TokenOptions) (string, *jwt.SessionClaims, error) {
	tok, err := e.sessionToken(ctx, opts)
	if err != nil {
		return "", nil, err
	}
	claims := *tok.claims
	return tok.raw, &claims, nil
}

func (e *Engine) sessionToken(ctx context.Context, opts TokenOptions) (cachedToken, error) {
	if err := e.checkOpen(); err != nil {
		return cachedToken{}, err
	}

	session := e.store.Current().ActiveSession()
	if session == nil {
		e.metricInc(MetricPreconditionFailed)
		return cachedToken{}, newClientError(ErrNoActiveSession, "no active session on this client")
	}
	key := tokenCacheKey(session.ID, opts.Template)

	if !opts.SkipCache && !e.config.SessionToken.CacheDisabled {
		if tok, ok := e.lookupToken(key); ok {
			e.metricInc(MetricSessionTokenCacheHit)
			return tok, nil
		}
	}

	ch := e.tokenGroup.DoChan(key, func() (any, error) {
		sessionID, raw, err := flows.RunFetchSessionToken(context.WithoutCancel(ctx), opts.Template, e.flows.Session)
		if err != nil {
			return nil, err
		}
		claims, err := e.parser.Parse(raw)
		if err != nil {
			e.metricInc(MetricSessionTokenFailure)
			return nil, fmt.Errorf("session token: %w", err)
		}
		res := tokenResult{sessionID: sessionID, token: cachedToken{raw: raw, claims: claims}}
		e.storeToken(tokenCacheKey(sessionID, opts.Template), res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return cachedToken{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return cachedToken{}, r.Err
		}
		return r.Val.(tokenResult).token, nil
	}
}

func (e *Engine) lookupToken(key string) (cachedToken, bool) {
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	tok, ok := e.tokens[key]
	if !ok {
		return cachedToken{}, false
	}
	if !time.Now().Before(tok.claims.Expiry().Add(-e.config.SessionToken.RefreshLeeway)) {
		delete(e.tokens, key)
		return cachedToken{}, false
	}
	return tok, true
}

// storeToken caches res unless the active session moved on while the
// request was in flight.
func (e *Engine) storeToken(key string, res tokenResult) {
	if e.config.SessionToken.CacheDisabled {
		return
	}
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	if res.sessionID != e.tokenSession {
		return
	}
	e.tokens[key] = res.token
}

func (e *Engine) dropTokens() {
	e.tokenMu.Lock()
	clear(e.tokens)
	e.tokenMu.Unlock()
}

func tokenCacheKey(sessionID, template string) string {
	if template == "" {
		return sessionID
	}
	return sessionID + ":" + template
}
