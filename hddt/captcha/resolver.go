// Package captcha fetches the portal's SVG login challenge, rasterizes it
// and resolves it through an external decode service.
package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
)

// ClientFactory supplies a fresh portal request context. Challenges are
// session-correlated, so every fetch builds its own context.
type ClientFactory func(timeout time.Duration) *api.Client

// Decoder decodes a rasterized challenge image to text.
type Decoder interface {
	Decode(ctx context.Context, image []byte) (string, error)
}

// Challenge is a single-use captcha: consumed by exactly one login attempt
// or one unauthenticated lookup.
type Challenge struct {
	Key   string
	Value string
}

type Resolver struct {
	fresh  ClientFactory
	solver Decoder
}

func NewResolver(fresh ClientFactory, solver Decoder) *Resolver {
	return &Resolver{fresh: fresh, solver: solver}
}

// Fetch obtains a new challenge from the portal.
func (r *Resolver) Fetch(ctx context.Context) (*model.CaptchaResponse, error) {
	var res model.CaptchaResponse
	if err := r.fresh(0).GetJSON(ctx, hddt.CaptchaPath, nil, &res); err != nil {
		return nil, err
	}
	if res.Key == "" || res.Content == "" {
		return nil, &api.ParseError{Op: hddt.CaptchaPath, Cause: fmt.Errorf("empty captcha challenge")}
	}
	return &res, nil
}

// Resolve rasterizes a fetched challenge and decodes it. Failures are always
// retryable by fetching a new challenge; re-submission is not supported.
func (r *Resolver) Resolve(ctx context.Context, ch *model.CaptchaResponse) (*Challenge, error) {
	img, err := Rasterize(ch.Content)
	if err != nil {
		return nil, err
	}
	text, err := r.solver.Decode(ctx, img)
	if err != nil {
		return nil, err
	}
	return &Challenge{Key: ch.Key, Value: text}, nil
}

// FetchAndResolve is the common fetch-then-resolve path.
func (r *Resolver) FetchAndResolve(ctx context.Context) (*Challenge, error) {
	ch, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, ch)
}
