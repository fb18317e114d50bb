package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/readmodel"
)

// MaxChartPoints caps the daily breakdown for chart rendering
const MaxChartPoints = 7

var ErrInvalidTimeRange = errors.New("time range must be 7d, 30d or 90d")

// TimeRange selects the earnings window
type TimeRange string

const (
	Range7Days  TimeRange = "7d"
	Range30Days TimeRange = "30d"
	Range90Days TimeRange = "90d"
)

// ParseTimeRange validates a range string from an untrusted caller
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case Range7Days, Range30Days, Range90Days:
		return TimeRange(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
	}
}

func (r TimeRange) days() int {
	switch r {
	case Range7Days:
		return 7
	case Range30Days:
		return 30
	default:
		return 90
	}
}

// DailyEarnings is one day of completed-order revenue
type DailyEarnings struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Revenue int    `json:"revenue"`
	Orders  int    `json:"orders"`
}

// Earnings summarizes a seller's completed orders over a window. Growth
// compares against the window of equal length immediately before it.
type Earnings struct {
	SellerID           string          `json:"seller_id"`
	TimeRange          TimeRange       `json:"time_range"`
	TotalRevenue       int             `json:"total_revenue"`
	TotalOrders        int             `json:"total_orders"`
	AverageOrderValue  int             `json:"average_order_value"`
	GrowthPercent      float64         `json:"growth_percent"`
	OrderGrowthPercent float64         `json:"order_growth_percent"`
	Daily              []DailyEarnings `json:"daily"`
}

// Aggregator computes seller earnings from the orders read model. Figures
// are recomputed on every call; nothing is cached.
type Aggregator struct {
	readStore store.ReadStoreInterface
	loc       *time.Location
	now       func() time.Time
}

func NewAggregator(rs store.ReadStoreInterface) *Aggregator {
	return &Aggregator{
		readStore: rs,
		loc:       time.UTC,
		now:       time.Now,
	}
}

// WithLocation sets the timezone used for day boundaries. Defaults to UTC.
func (a *Aggregator) WithLocation(loc *time.Location) *Aggregator {
	a.loc = loc
	return a
}

// GetSellerEarnings computes the earnings summary for one seller. Only
// completed orders count; they are bucketed by the day they completed.
func (a *Aggregator) GetSellerEarnings(ctx context.Context, sellerID string, timeRange TimeRange) (*Earnings, error) {
	days := timeRange.days()
	now := a.now().In(a.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)

	// Current window covers today and the preceding days-1 days; the
	// previous window is the equal-length stretch right before it.
	currentStart := today.AddDate(0, 0, -(days - 1))
	previousStart := currentStart.AddDate(0, 0, -days)

	items, err := a.readStore.GetAll(readmodel.CollectionOrders)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyEarnings, days)
	var currentRevenue, currentOrders, previousRevenue, previousOrders int

	for _, item := range items {
		order, ok := item.(*readmodel.OrderReadModel)
		if !ok || order.SellerID != sellerID {
			continue
		}
		if order.Status != "completed" || order.CompletedAt == nil {
			continue
		}

		completed := order.CompletedAt.In(a.loc)
		switch {
		case !completed.Before(currentStart):
			currentRevenue += order.Total
			currentOrders++
			day := completed.Format("2006-01-02")
			if byDay[day] == nil {
				byDay[day] = &DailyEarnings{Date: day}
			}
			byDay[day].Revenue += order.Total
			byDay[day].Orders++
		case !completed.Before(previousStart):
			previousRevenue += order.Total
			previousOrders++
		}
	}

	// Zero-fill so the chart always shows the full window
	daily := make([]DailyEarnings, 0, days)
	for d := 0; d < days; d++ {
		day := currentStart.AddDate(0, 0, d).Format("2006-01-02")
		if entry := byDay[day]; entry != nil {
			daily = append(daily, *entry)
		} else {
			daily = append(daily, DailyEarnings{Date: day})
		}
	}

	earnings := &Earnings{
		SellerID:           sellerID,
		TimeRange:          timeRange,
		TotalRevenue:       currentRevenue,
		TotalOrders:        currentOrders,
		GrowthPercent:      growth(currentRevenue, previousRevenue),
		OrderGrowthPercent: growth(currentOrders, previousOrders),
		Daily:              Downsample(daily),
	}
	if currentOrders > 0 {
		earnings.AverageOrderValue = currentRevenue / currentOrders
	}

	return earnings, nil
}

// growth is the percentage change against the previous window. A window
// with no prior revenue reports zero growth, not a division error.
func growth(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// Downsample thins a daily series to at most MaxChartPoints entries by
// keeping every ceil(n/max)-th day, starting from the first.
func Downsample(daily []DailyEarnings) []DailyEarnings {
	if len(daily) <= MaxChartPoints {
		return daily
	}

	step := (len(daily) + MaxChartPoints - 1) / MaxChartPoints
	sampled := make([]DailyEarnings, 0, MaxChartPoints)
	for i := 0; i < len(daily); i += step {
		sampled = append(sampled, daily[i])
	}
	return sampled
}
