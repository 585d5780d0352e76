package analytics

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/estatecrm/internal/crm"
)

// Source serves the eight aggregate reads. *crmapi.Client satisfies it.
type Source interface {
	TopLocations(ctx context.Context) (*crm.TopLocations, error)
	AveragePropertyValues(ctx context.Context) ([]crm.CityValue, error)
	LeadsPipeline(ctx context.Context) (*crm.LeadsPipeline, error)
	BuyerInsights(ctx context.Context) (*crm.BuyerInsights, error)
	SellerInsights(ctx context.Context) (*crm.SellerInsights, error)
	DemandVsSupply(ctx context.Context) (map[string]crm.DemandSupply, error)
	MarketValue(ctx context.Context) (*crm.MarketValue, error)
	ConversionRate(ctx context.Context) (*crm.ConversionRate, error)
}

type State int

const (
	StateLoading State = iota
	StateReady
	StateNoData
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "no-data"
	}
}

const (
	LoadingMessage = "Loading analytics..."
	NoDataMessage  = "No analytics data found"
)

// View holds the last joined analytics result for one console session.
type View struct {
	source Source
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	data       crm.Analytics
	generation uint64
}

func New(source Source, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{source: source, logger: logger, state: StateLoading}
}

// Bind swaps the source for later loads.
func (v *View) Bind(source Source) {
	v.mu.Lock()
	v.source = source
	v.mu.Unlock()
}

// Load issues the eight reads concurrently and waits for all of them. Any
// failure leaves the whole view in StateNoData.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.state = StateLoading
	source := v.source
	v.mu.Unlock()

	var out crm.Analytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TopLocations, err = source.TopLocations(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.AverageValues, err = source.AveragePropertyValues(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.LeadsPipeline, err = source.LeadsPipeline(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.BuyerInsights, err = source.BuyerInsights(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.SellerInsights, err = source.SellerInsights(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.DemandVsSupply, err = source.DemandVsSupply(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.MarketValue, err = source.MarketValue(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.ConversionRate, err = source.ConversionRate(gctx)
		return err
	})
	err := g.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return nil
	}
	if err != nil {
		v.logger.ErrorContext(ctx, "load analytics failed", "error", err)
		v.state = StateNoData
		v.data = crm.Analytics{}
		return err
	}
	if out.TopLocations == nil {
		v.logger.WarnContext(ctx, "analytics returned no top locations")
		v.state = StateNoData
		v.data = crm.Analytics{}
		return nil
	}
	v.state = StateReady
	v.data = out
	return nil
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Data() crm.Analytics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data
}

// Page renders the current state into tiles. Only StateReady has tiles.
func (v *View) Page() Page {
	v.mu.Lock()
	state, data := v.state, v.data
	v.mu.Unlock()

	switch state {
	case StateLoading:
		return Page{State: state, Message: LoadingMessage}
	case StateNoData:
		return Page{State: state, Message: NoDataMessage}
	}
	return Page{State: state, Tiles: BuildTiles(data)}
}
