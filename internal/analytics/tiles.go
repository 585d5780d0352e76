package analytics

import (
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/phillip-england/estatecrm/internal/crm"
)

// Palette is the slice colour cycle for donut charts.
var Palette = []string{"#4f46e5", "#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6"}

const emptyDonutColor = "#e5e7eb"

type Page struct {
	State   State
	Message string
	Tiles   []Tile
}

type Stat struct {
	Label string
	Value string
}

type Section struct {
	Title string
	Stats []Stat
}

type Bar struct {
	Label string
	Value string
	Width template.CSS
}

type Slice struct {
	Label string
	Count int
	Color template.CSS
}

type Donut struct {
	Title    string
	Slices   []Slice
	Gradient template.CSS
}

type Progress struct {
	Summary string
	Rate    string
	Width   template.CSS
}

// Tile is one panel of the analytics grid. When Fallback is set the tile
// shows only that text.
type Tile struct {
	Icon     string
	Title    string
	Wide     bool
	Fallback string
	Stats    []Stat
	Sections []Section
	Bars     []Bar
	Donut    *Donut
	Extras   []Donut
	Progress *Progress
}

// BuildTiles projects a joined analytics result onto the dashboard tiles.
// Each tile reads exactly one of the eight payloads.
func BuildTiles(a crm.Analytics) []Tile {
	return []Tile{
		locationTile("🛒", "Buyer Demand", topBuyer(a.TopLocations), "buyers", "No buyer data available"),
		locationTile("🏠", "Seller Supply", topSeller(a.TopLocations), "listings", "No seller data available"),
		averageValuesTile(a.AverageValues),
		conversionTile(a.ConversionRate),
		topCitiesTile(a.AverageValues),
		pipelineTile(a.LeadsPipeline),
		buyerInsightsTile(a.BuyerInsights),
		sellerInsightsTile(a.SellerInsights),
		demandSupplyTile(a.DemandVsSupply),
		marketValueTile(a.MarketValue),
	}
}

func topBuyer(t *crm.TopLocations) *crm.LocationStat {
	if t == nil {
		return nil
	}
	return t.TopBuyerLocation
}

func topSeller(t *crm.TopLocations) *crm.LocationStat {
	if t == nil {
		return nil
	}
	return t.TopSellerLocation
}

func locationTile(icon, title string, stat *crm.LocationStat, unit, fallback string) Tile {
	tile := Tile{Icon: icon, Title: title}
	if stat == nil || stat.Message == "" {
		tile.Fallback = fallback
		return tile
	}
	s := Stat{Label: stat.Message}
	if stat.City != "" {
		s.Value = fmt.Sprintf("%d %s", stat.Count, unit)
	}
	tile.Stats = []Stat{s}
	return tile
}

func averageValuesTile(values []crm.CityValue) Tile {
	tile := Tile{Icon: "💰", Title: "Avg Property Values by City", Wide: true}
	if len(values) == 0 {
		tile.Fallback = "No property value data available"
		return tile
	}
	for _, v := range values {
		tile.Stats = append(tile.Stats, Stat{
			Label: v.City,
			Value: fmt.Sprintf("%s (%d listings)", crm.FormatMoney(v.AvgValue), v.Count),
		})
	}
	return tile
}

func percentWidth(p float64) template.CSS {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return template.CSS("width: " + strconv.FormatFloat(p, 'f', 2, 64) + "%")
}

func conversionTile(c *crm.ConversionRate) Tile {
	tile := Tile{Icon: "🎯", Title: "Performance (by Conversion Rate)", Wide: true}
	if c == nil {
		tile.Fallback = "No conversion data"
		return tile
	}
	tile.Progress = &Progress{
		Summary: fmt.Sprintf("%d / %d leads", c.CompletedLeads, c.TotalLeads),
		Rate:    strconv.FormatFloat(c.ConversionRate, 'f', -1, 64) + "%",
		Width:   percentWidth(c.ConversionRate),
	}
	return tile
}

func topCitiesTile(values []crm.CityValue) Tile {
	tile := Tile{Icon: "📈", Title: "Top Cities by Avg Property Value", Wide: true}
	top := crm.TopCities(values)
	if len(top) == 0 {
		tile.Fallback = "No city value data"
		return tile
	}
	peak := top[0].AvgValue
	for _, v := range top {
		width := 0.0
		if peak > 0 {
			width = v.AvgValue / peak * 100
		}
		tile.Bars = append(tile.Bars, Bar{Label: v.City, Value: crm.FormatMoney(v.AvgValue), Width: percentWidth(width)})
	}
	return tile
}

// countStats orders a count map by count, highest first, then by key.
func countStats(counts map[string]int) []Stat {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([]Stat, 0, len(keys))
	for _, k := range keys {
		out = append(out, Stat{Label: k, Value: strconv.Itoa(counts[k])})
	}
	return out
}

func pipelineTile(p *crm.LeadsPipeline) Tile {
	tile := Tile{Icon: "📊", Title: "Leads Pipeline", Wide: true}
	if p == nil {
		tile.Fallback = "No lead data available"
		return tile
	}
	tile.Sections = []Section{
		{Title: "Status", Stats: countStats(p.StatusCounts)},
		{Title: "Source", Stats: countStats(p.SourceCounts)},
		{Title: "Priority", Stats: countStats(p.PriorityCounts)},
	}
	return tile
}

// NewDonut builds a conic-gradient donut, cycling through Palette.
func NewDonut(title string, labels []string, counts []int) Donut {
	d := Donut{Title: title}
	total := 0
	for _, c := range counts {
		total += c
	}
	var stops []string
	acc := 0
	for i, label := range labels {
		color := Palette[i%len(Palette)]
		d.Slices = append(d.Slices, Slice{Label: label, Count: counts[i], Color: template.CSS("background: " + color)})
		if total == 0 {
			continue
		}
		start := float64(acc) / float64(total) * 100
		acc += counts[i]
		end := float64(acc) / float64(total) * 100
		stops = append(stops, fmt.Sprintf("%s %.2f%% %.2f%%", color, start, end))
	}
	if len(stops) == 0 {
		stops = []string{emptyDonutColor + " 0% 100%"}
	}
	d.Gradient = template.CSS("background: conic-gradient(" + strings.Join(stops, ", ") + ")")
	return d
}

func bucketDonut(title string, buckets []crm.Bucket) Donut {
	labels := make([]string, 0, len(buckets))
	counts := make([]int, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, string(b.ID))
		counts = append(counts, b.Count)
	}
	return NewDonut(title, labels, counts)
}

func bucketExtras(buckets []crm.Bucket) []Donut {
	var out []Donut
	for _, b := range buckets {
		out = append(out, bucketDonut(string(b.ID), []crm.Bucket{b}))
	}
	return out
}

func buyerInsightsTile(b *crm.BuyerInsights) Tile {
	tile := Tile{Icon: "👥", Title: "Buyer Insights"}
	if b == nil || b.SizeDistribution == nil {
		tile.Fallback = "No buyer insights"
		return tile
	}
	donut := bucketDonut("Interested Square Feet", b.SizeDistribution)
	tile.Donut = &donut
	tile.Extras = bucketExtras(b.AgeDistribution)
	return tile
}

func sellerInsightsTile(s *crm.SellerInsights) Tile {
	tile := Tile{Icon: "🏡", Title: "Seller Insights"}
	if s == nil || s.PropertyTypes == nil {
		tile.Fallback = "No seller insights"
		return tile
	}
	stats := countStats(s.PropertyTypes)
	labels := make([]string, 0, len(stats))
	counts := make([]int, 0, len(stats))
	for _, st := range stats {
		labels = append(labels, st.Label)
		counts = append(counts, s.PropertyTypes[st.Label])
	}
	donut := NewDonut("Property Types", labels, counts)
	tile.Donut = &donut
	tile.Extras = bucketExtras(s.LocationDistribution)
	return tile
}

func demandSupplyTile(ds map[string]crm.DemandSupply) Tile {
	tile := Tile{Icon: "⚖️", Title: "Market Demand vs Supply", Wide: true}
	if ds == nil {
		tile.Fallback = "No demand/supply data"
		return tile
	}
	cities := make([]string, 0, len(ds))
	for city := range ds {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	for _, city := range cities {
		tile.Stats = append(tile.Stats, Stat{
			Label: city,
			Value: fmt.Sprintf("%d buyers vs %d sellers", ds[city].Buyers, ds[city].Sellers),
		})
	}
	return tile
}

func marketValueTile(m *crm.MarketValue) Tile {
	tile := Tile{Icon: "💵", Title: "Market Value", Wide: true}
	if m == nil {
		tile.Fallback = "No market value data available"
		return tile
	}
	totals := Section{Title: "Total Value by City"}
	for _, c := range m.TotalByCity {
		totals.Stats = append(totals.Stats, Stat{
			Label: c.City,
			Value: fmt.Sprintf("%s (%d)", crm.FormatMoney(c.TotalValue), c.Count),
		})
	}
	listings := Section{Title: "Top 5 Most Valuable Listings"}
	for _, l := range m.TopListings {
		listings.Stats = append(listings.Stats, Stat{
			Label: l.PropertyLocation + " - " + l.PropertyType,
			Value: fmt.Sprintf("%s (%s BR / %s BA)", crm.FormatMoney(l.PropertyValue.Value), l.Bedrooms.String(), l.Bathrooms.String()),
		})
	}
	tile.Sections = []Section{totals, listings}
	return tile
}
