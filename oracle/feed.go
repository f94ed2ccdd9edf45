package oracle

import "context"

// Feed combines the router (spot price) and Allora (prediction) clients into
// the single price oracle the game engine consumes.
type Feed struct {
	Router *RouterClient
	Allora *AlloraClient
}

// Current returns the spot price text for the asset via the query router.
func (f *Feed) Current(ctx context.Context, asset string) (string, error) {
	return f.Router.Price(ctx, asset)
}

// Predict returns Allora's horizon-ahead price text for the asset.
func (f *Feed) Predict(ctx context.Context, asset, timeframe string) (string, error) {
	return f.Allora.PriceInference(ctx, asset, timeframe)
}
