package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nurpe/pestops-contracts/internal/model"
)

// DropdownCache stores the reference option sets between sessions.
type DropdownCache interface {
	GetDropdowns(ctx context.Context) (model.Dropdowns, bool, error)
	SetDropdowns(ctx context.Context, dropdowns model.Dropdowns) error
}

// CachedGateway serves FetchDropdowns from a cache and delegates every
// other call.
type CachedGateway struct {
	Gateway
	cache DropdownCache
	log   zerolog.Logger
}

func NewCachedGateway(next Gateway, cache DropdownCache, log zerolog.Logger) *CachedGateway {
	return &CachedGateway{Gateway: next, cache: cache, log: log}
}

func (g *CachedGateway) FetchDropdowns(ctx context.Context) (model.Dropdowns, error) {
	cached, ok, err := g.cache.GetDropdowns(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("dropdown cache read failed")
	}
	if ok {
		return cached, nil
	}

	dropdowns, err := g.Gateway.FetchDropdowns(ctx)
	if err != nil {
		return model.Dropdowns{}, err
	}
	if err := g.cache.SetDropdowns(ctx, dropdowns); err != nil {
		g.log.Warn().Err(err).Msg("dropdown cache write failed")
	}
	return dropdowns, nil
}
