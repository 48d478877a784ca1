package core

import (
	"sort"
	"time"

	"github.com/cockroachdb/apd/v3"

	"herdcore/pkg/domain"
)

// animalMetrics projects the per-animal metrics from a log snapshot. The log
// is ordered by timestamp descending before scanning so the most recent
// readings win regardless of ingestion order.
func animalMetrics(snap domain.Snapshot, tag string) (domain.AnimalMetrics, error) {
	if _, ok := snap.Animal(tag); !ok {
		return domain.AnimalMetrics{}, domain.NotFound{Entity: EntityAnimal, ID: tag}
	}
	events := snap.EventsForAnimal(tag)
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })

	m := domain.AnimalMetrics{Tag: tag}
	for _, e := range events {
		switch e.Category {
		case domain.EventWeight:
			detail, ok := e.Detail.(domain.WeightDetail)
			if !ok {
				continue
			}
			reading := domain.WeightReading{Kg: detail.Kg, At: e.OccurredAt}
			switch {
			case m.LastWeight == nil:
				m.LastWeight = &reading
			case m.PreviousWeight == nil:
				m.PreviousWeight = &reading
			}
		case domain.EventMovement:
			if m.LastLocationCode != nil {
				continue
			}
			// Destination wins; origin is the fallback when absent.
			id := e.ToLocationID
			if id == nil {
				id = e.FromLocationID
			}
			if id == nil {
				continue
			}
			if code, ok := locationCode(snap, *id); ok {
				m.LastLocationCode = &code
			}
		}
	}
	if m.LastWeight != nil && m.PreviousWeight != nil {
		if adg, ok := avgDailyGain(*m.LastWeight, *m.PreviousWeight); ok {
			m.AvgDailyGainKg = &adg
		}
	}
	return m, nil
}

func locationCode(snap domain.Snapshot, id string) (string, bool) {
	for _, d := range snap.Dimensions(DimensionLocation) {
		if d.ID == id {
			return d.Code, true
		}
	}
	return "", false
}

// avgDailyGain computes (last - previous) / elapsedDays rounded to two
// decimal places. Elapsed time of zero or less yields no value.
func avgDailyGain(last, prev domain.WeightReading) (float64, bool) {
	elapsed := last.At.Sub(prev.At)
	if elapsed <= 0 {
		return 0, false
	}
	ctx := apd.BaseContext.WithPrecision(25)
	ctx.Rounding = apd.RoundHalfUp

	var lastD, prevD, gain, days, dayNanos, rate apd.Decimal
	if _, err := lastD.SetFloat64(last.Kg); err != nil {
		return 0, false
	}
	if _, err := prevD.SetFloat64(prev.Kg); err != nil {
		return 0, false
	}
	if _, err := ctx.Sub(&gain, &lastD, &prevD); err != nil {
		return 0, false
	}
	days.SetInt64(elapsed.Nanoseconds())
	dayNanos.SetInt64(int64(24 * time.Hour))
	if _, err := ctx.Quo(&days, &days, &dayNanos); err != nil {
		return 0, false
	}
	if _, err := ctx.Quo(&rate, &gain, &days); err != nil {
		return 0, false
	}
	if _, err := ctx.Quantize(&rate, &rate, -2); err != nil {
		return 0, false
	}
	f, err := rate.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

type costTotalKey struct {
	category domain.CostCategory
	currency string
}

// herdSummary projects the herd-level counters and cost totals. Money is
// summed with decimal arithmetic and reported as two-place decimal strings.
func herdSummary(snap domain.Snapshot) domain.HerdSummary {
	sum := domain.HerdSummary{
		EventsByCategory: make(map[domain.EventCategory]int),
		Dimensions:       make(map[domain.DimensionKind]int),
	}
	sum.Animals = len(snap.Animals())
	for _, e := range snap.Events() {
		sum.EventsByCategory[e.Category]++
	}
	for _, kind := range domain.DimensionKinds() {
		sum.Dimensions[kind] = len(snap.Dimensions(kind))
	}

	ctx := apd.BaseContext.WithPrecision(25)
	ctx.Rounding = apd.RoundHalfUp
	totals := make(map[costTotalKey]*apd.Decimal)
	for _, c := range snap.Costs() {
		var amount apd.Decimal
		if _, err := amount.SetFloat64(c.Amount); err != nil {
			continue
		}
		key := costTotalKey{category: c.Category, currency: c.Currency}
		if total, ok := totals[key]; ok {
			if _, err := ctx.Add(total, total, &amount); err != nil {
				continue
			}
		} else {
			total := new(apd.Decimal)
			total.Set(&amount)
			totals[key] = total
		}
	}
	for key, total := range totals {
		if _, err := ctx.Quantize(total, total, -2); err != nil {
			continue
		}
		sum.CostTotals = append(sum.CostTotals, domain.CostTotal{
			Category: key.category,
			Currency: key.currency,
			Total:    total.Text('f'),
		})
	}
	sort.Slice(sum.CostTotals, func(i, j int) bool {
		a, b := sum.CostTotals[i], sum.CostTotals[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Currency < b.Currency
	})
	return sum
}
