package crmapi

import (
	"context"
	"net/http"

	"github.com/phillip-england/estatecrm/internal/crm"
)

func (c *Client) TopLocations(ctx context.Context) (*crm.TopLocations, error) {
	var out crm.TopLocations
	if err := c.getAnalytics(ctx, crm.TopLocationsEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AveragePropertyValues(ctx context.Context) ([]crm.CityValue, error) {
	var out []crm.CityValue
	if err := c.getAnalytics(ctx, crm.AverageValuesEndpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LeadsPipeline(ctx context.Context) (*crm.LeadsPipeline, error) {
	var out crm.LeadsPipeline
	if err := c.getAnalytics(ctx, crm.LeadsPipelineEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BuyerInsights(ctx context.Context) (*crm.BuyerInsights, error) {
	var out crm.BuyerInsights
	if err := c.getAnalytics(ctx, crm.BuyerInsightsEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SellerInsights(ctx context.Context) (*crm.SellerInsights, error) {
	var out crm.SellerInsights
	if err := c.getAnalytics(ctx, crm.SellerInsightsEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DemandVsSupply(ctx context.Context) (map[string]crm.DemandSupply, error) {
	var out map[string]crm.DemandSupply
	if err := c.getAnalytics(ctx, crm.DemandVsSupplyEndpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarketValue(ctx context.Context) (*crm.MarketValue, error) {
	var out crm.MarketValue
	if err := c.getAnalytics(ctx, crm.MarketValueEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConversionRate(ctx context.Context) (*crm.ConversionRate, error) {
	var out crm.ConversionRate
	if err := c.getAnalytics(ctx, crm.ConversionRateEndpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getAnalytics(ctx context.Context, endpoint crm.AnalyticsEndpoint, out any) error {
	return c.doJSON(ctx, "analytics "+string(endpoint), http.MethodGet, string(endpoint), nil, out)
}
