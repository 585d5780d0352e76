package demoapi

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/phillip-england/estatecrm/internal/crm"
)

const (
	unknownKey     = "Unknown"
	unspecifiedKey = "Unspecified"
	openBucket     = "10000+"
)

var sizeBoundaries = []int{0, 500, 1000, 2000, 5000, 10000}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func keyOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// groupBy splits items by key and returns the keys in first-seen order.
func groupBy[T any](items []T, key func(T) string) ([]string, map[string][]T) {
	var order []string
	groups := map[string][]T{}
	for _, item := range items {
		k := key(item)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], item)
	}
	return order, groups
}

func countBy[T any](items []T, key func(T) string) map[string]int {
	out := map[string]int{}
	for _, item := range items {
		out[key(item)]++
	}
	return out
}

func mean(values []crm.Number) (float64, bool) {
	var sum float64
	var n int
	for _, v := range values {
		if v.Valid {
			sum += v.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func topGroup[T any](items []T, key func(T) string) (string, int, bool) {
	order, groups := groupBy(items, key)
	best, bestCount := "", 0
	for _, k := range order {
		if len(groups[k]) > bestCount {
			best, bestCount = k, len(groups[k])
		}
	}
	return best, bestCount, bestCount > 0
}

func (s *Store) TopLocations() crm.TopLocations {
	out := crm.TopLocations{}

	city, count, ok := topGroup(s.Buyers(), func(b Buyer) string { return b.InterestedLocation })
	if ok {
		city = keyOr(city, unknownKey)
		out.TopBuyerLocation = &crm.LocationStat{
			City:    city,
			Count:   count,
			Message: fmt.Sprintf("🔥 Most buyers are interested in %s (%d inquiries)", city, count),
		}
	} else {
		out.TopBuyerLocation = &crm.LocationStat{Message: "No buyer data available"}
	}

	city, count, ok = topGroup(s.Sellers(), func(sl Seller) string { return sl.PropertyLocation })
	if ok {
		city = keyOr(city, unknownKey)
		out.TopSellerLocation = &crm.LocationStat{
			City:    city,
			Count:   count,
			Message: fmt.Sprintf("🌟 Most properties are listed in %s (%d listings)", city, count),
		}
	} else {
		out.TopSellerLocation = &crm.LocationStat{Message: "No seller data available"}
	}
	return out
}

func (s *Store) AveragePropertyValues() []crm.CityValue {
	order, groups := groupBy(s.Sellers(), func(sl Seller) string { return sl.PropertyLocation })
	out := make([]crm.CityValue, 0, len(order))
	for _, city := range order {
		values := make([]crm.Number, 0, len(groups[city]))
		for _, sl := range groups[city] {
			values = append(values, sl.PropertyValue)
		}
		avg, _ := mean(values)
		out = append(out, crm.CityValue{City: keyOr(city, unknownKey), AvgValue: round(avg, 2), Count: len(groups[city])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgValue > out[j].AvgValue })
	return out
}

func (s *Store) LeadsPipeline() crm.LeadsPipeline {
	leads := s.Leads()
	return crm.LeadsPipeline{
		StatusCounts:   countBy(leads, func(l Lead) string { return keyOr(l.Status, unknownKey) }),
		SourceCounts:   countBy(leads, func(l Lead) string { return keyOr(l.Source, unknownKey) }),
		PriorityCounts: countBy(leads, func(l Lead) string { return keyOr(l.Priority, unspecifiedKey) }),
	}
}

// sizeBucket returns the lower boundary holding v, or the open bucket for
// values outside the boundaries and missing values.
func sizeBucket(v crm.Number) string {
	if !v.Valid {
		return openBucket
	}
	for i := len(sizeBoundaries) - 2; i >= 0; i-- {
		if v.Value >= float64(sizeBoundaries[i]) && v.Value < float64(sizeBoundaries[i+1]) {
			return strconv.Itoa(sizeBoundaries[i])
		}
	}
	return openBucket
}

func (s *Store) BuyerInsights() crm.BuyerInsights {
	buyers := s.Buyers()

	sizes := countBy(buyers, func(b Buyer) string { return sizeBucket(b.InterestedSquareFeet) })
	out := crm.BuyerInsights{SizeDistribution: []crm.Bucket{}, BuyersTimeline: []crm.Bucket{}}
	for _, boundary := range sizeBoundaries[:len(sizeBoundaries)-1] {
		key := strconv.Itoa(boundary)
		if n := sizes[key]; n > 0 {
			out.SizeDistribution = append(out.SizeDistribution, crm.Bucket{ID: crm.BucketKey(key), Count: n})
		}
	}
	if n := sizes[openBucket]; n > 0 {
		out.SizeDistribution = append(out.SizeDistribution, crm.Bucket{ID: openBucket, Count: n})
	}

	months := countBy(buyers, func(b Buyer) string { return b.CreatedAt.Format("2006-01") })
	for month, n := range months {
		out.BuyersTimeline = append(out.BuyersTimeline, crm.Bucket{ID: crm.BucketKey(month), Count: n})
	}
	sort.Slice(out.BuyersTimeline, func(i, j int) bool { return out.BuyersTimeline[i].ID < out.BuyersTimeline[j].ID })
	return out
}

func (s *Store) SellerInsights() crm.SellerInsights {
	sellers := s.Sellers()
	out := crm.SellerInsights{
		PropertyTypes: countBy(sellers, func(sl Seller) string { return keyOr(deref(sl.PropertyType), unknownKey) }),
		ListingStatus: countBy(sellers, func(sl Seller) string { return keyOr(sl.ListingStatus, unknownKey) }),
		AvgBedsBaths:  []crm.CityBedsBaths{},
	}

	order, groups := groupBy(sellers, func(sl Seller) string { return sl.PropertyLocation })
	for _, city := range order {
		var beds, baths []crm.Number
		for _, sl := range groups[city] {
			beds = append(beds, sl.Bedrooms)
			baths = append(baths, sl.Bathrooms)
		}
		avgBeds, _ := mean(beds)
		avgBaths, _ := mean(baths)
		out.AvgBedsBaths = append(out.AvgBedsBaths, crm.CityBedsBaths{
			City:         keyOr(city, unknownKey),
			AvgBedrooms:  round(avgBeds, 1),
			AvgBathrooms: round(avgBaths, 1),
			Count:        len(groups[city]),
		})
	}
	sort.SliceStable(out.AvgBedsBaths, func(i, j int) bool { return out.AvgBedsBaths[i].Count > out.AvgBedsBaths[j].Count })
	return out
}

func (s *Store) DemandVsSupply() map[string]crm.DemandSupply {
	out := map[string]crm.DemandSupply{}
	for city, n := range countBy(s.Buyers(), func(b Buyer) string { return keyOr(b.InterestedLocation, unknownKey) }) {
		out[city] = crm.DemandSupply{Buyers: n}
	}
	for city, n := range countBy(s.Sellers(), func(sl Seller) string { return keyOr(sl.PropertyLocation, unknownKey) }) {
		entry := out[city]
		entry.Sellers = n
		out[city] = entry
	}
	return out
}

const topListingsLimit = 5

func (s *Store) MarketValue() crm.MarketValue {
	sellers := s.Sellers()
	out := crm.MarketValue{TotalByCity: []crm.CityTotal{}, TopListings: []crm.Listing{}}

	order, groups := groupBy(sellers, func(sl Seller) string { return sl.PropertyLocation })
	for _, city := range order {
		var total float64
		for _, sl := range groups[city] {
			if sl.PropertyValue.Valid {
				total += sl.PropertyValue.Value
			}
		}
		out.TotalByCity = append(out.TotalByCity, crm.CityTotal{City: keyOr(city, unknownKey), TotalValue: round(total, 2), Count: len(groups[city])})
	}
	sort.SliceStable(out.TotalByCity, func(i, j int) bool { return out.TotalByCity[i].TotalValue > out.TotalByCity[j].TotalValue })

	// Listings without a value sort last.
	sort.SliceStable(sellers, func(i, j int) bool {
		a, b := sellers[i].PropertyValue, sellers[j].PropertyValue
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Value > b.Value
	})
	for _, sl := range sellers {
		if len(out.TopListings) == topListingsLimit {
			break
		}
		out.TopListings = append(out.TopListings, crm.Listing{
			ID:               sl.ID,
			PropertyLocation: keyOr(sl.PropertyLocation, unknownKey),
			PropertyValue:    sl.PropertyValue,
			PropertyType:     deref(sl.PropertyType),
			Bedrooms:         sl.Bedrooms,
			Bathrooms:        sl.Bathrooms,
		})
	}
	return out
}

func (s *Store) ConversionRate() crm.ConversionRate {
	leads := s.Leads()
	closed := 0
	for _, l := range leads {
		if l.Status == string(crm.LeadClosed) {
			closed++
		}
	}
	out := crm.ConversionRate{TotalLeads: len(leads), CompletedLeads: closed}
	if len(leads) > 0 {
		out.ConversionRate = round(float64(closed)/float64(len(leads))*100, 2)
	}
	return out
}
