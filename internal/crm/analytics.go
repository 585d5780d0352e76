package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// AnalyticsEndpoint names the eight aggregate reads served under /analytics.
type AnalyticsEndpoint string

const (
	TopLocationsEndpoint   AnalyticsEndpoint = "/analytics/top-locations"
	AverageValuesEndpoint  AnalyticsEndpoint = "/analytics/average-property-values"
	LeadsPipelineEndpoint  AnalyticsEndpoint = "/analytics/leads-pipeline"
	BuyerInsightsEndpoint  AnalyticsEndpoint = "/analytics/buyer-insights"
	SellerInsightsEndpoint AnalyticsEndpoint = "/analytics/seller-insights"
	DemandVsSupplyEndpoint AnalyticsEndpoint = "/analytics/market-demand-vs-supply"
	MarketValueEndpoint    AnalyticsEndpoint = "/analytics/market-value"
	ConversionRateEndpoint AnalyticsEndpoint = "/analytics/conversion-rate"
)

type LocationStat struct {
	City    string `json:"city,omitempty"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message"`
}

type TopLocations struct {
	TopBuyerLocation  *LocationStat `json:"topBuyerLocation"`
	TopSellerLocation *LocationStat `json:"topSellerLocation"`
}

type CityValue struct {
	City     string  `json:"city"`
	AvgValue float64 `json:"avgValue"`
	Count    int     `json:"count"`
}

type LeadsPipeline struct {
	StatusCounts   map[string]int `json:"statusCounts"`
	SourceCounts   map[string]int `json:"sourceCounts"`
	PriorityCounts map[string]int `json:"priorityCounts"`
}

// BucketKey is a group key that may be a number or a string on the wire,
// such as the square-feet boundaries 0, 500 and "10000+".
type BucketKey string

func (k *BucketKey) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*k = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*k = BucketKey(s)
		return nil
	}
	*k = BucketKey(string(trimmed))
	return nil
}

func (k BucketKey) MarshalJSON() ([]byte, error) {
	if v, err := strconv.ParseFloat(string(k), 64); err == nil {
		return json.Marshal(v)
	}
	return json.Marshal(string(k))
}

type Bucket struct {
	ID    BucketKey `json:"_id"`
	Count int       `json:"count"`
}

type BuyerInsights struct {
	SizeDistribution []Bucket `json:"sizeDistribution"`
	BuyersTimeline   []Bucket `json:"buyersTimeline"`
	AgeDistribution  []Bucket `json:"ageDistribution,omitempty"`
}

type CityBedsBaths struct {
	City         string  `json:"city"`
	AvgBedrooms  float64 `json:"avgBedrooms"`
	AvgBathrooms float64 `json:"avgBathrooms"`
	Count        int     `json:"count"`
}

type SellerInsights struct {
	PropertyTypes        map[string]int  `json:"propertyTypes"`
	ListingStatus        map[string]int  `json:"listingStatus"`
	AvgBedsBaths         []CityBedsBaths `json:"avgBedsBaths"`
	LocationDistribution []Bucket        `json:"locationDistribution,omitempty"`
}

type DemandSupply struct {
	Buyers  int `json:"buyers"`
	Sellers int `json:"sellers"`
}

type CityTotal struct {
	City       string  `json:"city"`
	TotalValue float64 `json:"totalValue"`
	Count      int     `json:"count"`
}

type Listing struct {
	ID               string `json:"_id"`
	PropertyLocation string `json:"propertyLocation"`
	PropertyValue    Number `json:"propertyValue"`
	PropertyType     string `json:"propertyType"`
	Bedrooms         Number `json:"bedrooms"`
	Bathrooms        Number `json:"bathrooms"`
}

type MarketValue struct {
	TotalByCity []CityTotal `json:"totalByCity"`
	TopListings []Listing   `json:"topListings"`
}

type ConversionRate struct {
	TotalLeads     int     `json:"totalLeads"`
	CompletedLeads int     `json:"completedLeads"`
	ConversionRate float64 `json:"conversionRate"`
}

// Analytics is the joined result of the eight aggregate reads.
type Analytics struct {
	TopLocations   *TopLocations
	AverageValues  []CityValue
	LeadsPipeline  *LeadsPipeline
	BuyerInsights  *BuyerInsights
	SellerInsights *SellerInsights
	DemandVsSupply map[string]DemandSupply
	MarketValue    *MarketValue
	ConversionRate *ConversionRate
}

const topCitiesLimit = 5

// TopCities orders cities by average value, highest first, and keeps five.
// Cities with equal averages keep their input order.
func TopCities(values []CityValue) []CityValue {
	sorted := make([]CityValue, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgValue > sorted[j].AvgValue
	})
	if len(sorted) > topCitiesLimit {
		sorted = sorted[:topCitiesLimit]
	}
	return sorted
}

// FormatMoney renders a dollar amount with thousands separators.
func FormatMoney(v float64) string {
	return "$" + FormatThousands(v)
}

func FormatThousands(v float64) string {
	neg := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))
	whole, frac := cents/100, cents%100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac > 0 {
		b.WriteString(strings.TrimRight(fmt.Sprintf(".%02d", frac), "0"))
	}
	return b.String()
}
