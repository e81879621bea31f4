package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// stamped pairs a cleaned row with its parsed timestamp for window scans.
type stamped struct {
	ts  time.Time
	row domain.CleanedRow
}

// groupByCustomer buckets rows by CustomerID, falling back to AccountNumber
// and then the UNKNOWN bucket, each group sorted ascending by timestamp.
// Rows whose canonical timestamp fails to parse are left out of the grouped
// rules but remain visible to the per-row rules.
func groupByCustomer(rows []domain.CleanedRow) map[string][]stamped {
	groups := make(map[string][]stamped)
	for _, r := range rows {
		ts, ok := r.Time()
		if !ok {
			continue
		}
		key := r.GroupKey()
		groups[key] = append(groups[key], stamped{ts: ts, row: r})
	}
	for _, items := range groups {
		sort.Slice(items, func(i, j int) bool { return items[i].ts.Before(items[j].ts) })
	}
	return groups
}

// detectVelocity scans each group with a sliding window: for each index i it
// extends j while ts[j]-ts[i] stays inside the window, alerting when the run
// reaches the configured count. Scanning continues from i+1 rather than
// skipping past the window, so overlapping bursts each produce an alert.
// Multiple overlapping alerts for one burst are expected output, not a bug.
func (e *Engine) detectVelocity(groups map[string][]stamped) []domain.Alert {
	window := time.Duration(e.thresholds.VelocityWindowMins) * time.Minute
	var alerts []domain.Alert

	for key, items := range groups {
		for i := range items {
			j := i + 1
			for j < len(items) && items[j].ts.Sub(items[i].ts) <= window {
				j++
			}
			count := j - i
			if count < e.thresholds.VelocityCount {
				continue
			}

			run := make([]domain.CleanedRow, 0, count)
			for _, it := range items[i:j] {
				run = append(run, it.row)
			}
			alerts = append(alerts, domain.Alert{
				ID:   fmt.Sprintf("ALERT_VELOCITY_%s_%s", key, items[i].ts.Format(time.RFC3339)),
				Type: domain.AlertVelocityAttack,
				Reason: fmt.Sprintf("%d transactions within %d minutes",
					count, e.thresholds.VelocityWindowMins),
				AccountNumber: accountOf(items[i].row),
				CustomerID:    items[i].row.Str(domain.FieldCustomerID),
				CreatedAt:     items[i].row.Str(domain.FieldTimestamp),
				Payload:       run,
			})
		}
	}
	return alerts
}

// detectGeoSwitch flags every pair of transactions in a group with different
// non-empty locations inside the geo window. The scan is a full pairwise
// comparison with no distance or travel-time model; that imprecision is a
// known limitation of the rule, kept deliberately.
func (e *Engine) detectGeoSwitch(groups map[string][]stamped) []domain.Alert {
	window := time.Duration(e.thresholds.GeoSwitchWindowMins) * time.Minute
	var alerts []domain.Alert

	for key, items := range groups {
		for i := range items {
			loc1 := items[i].row.Str(domain.FieldLocation)
			if loc1 == "" {
				continue
			}
			for j := i + 1; j < len(items); j++ {
				loc2 := items[j].row.Str(domain.FieldLocation)
				if loc2 == "" || loc2 == loc1 {
					continue
				}
				if items[j].ts.Sub(items[i].ts) > window {
					continue
				}
				alerts = append(alerts, domain.Alert{
					ID:   fmt.Sprintf("ALERT_GEO_%s_%s", key, items[i].ts.Format(time.RFC3339)),
					Type: domain.AlertGeoSwitch,
					Reason: fmt.Sprintf("Transaction from %s to %s within %d minutes",
						loc1, loc2, e.thresholds.GeoSwitchWindowMins),
					AccountNumber: accountOf(items[i].row),
					CustomerID:    items[i].row.Str(domain.FieldCustomerID),
					CreatedAt:     items[i].row.Str(domain.FieldTimestamp),
					Payload:       []domain.CleanedRow{items[i].row, items[j].row},
				})
			}
		}
	}
	return alerts
}

// detectBalanceDrain accumulates amounts from each group's first timestamp
// and raises exactly one alert per group when the running total reaches the
// drain threshold while still inside the window.
func (e *Engine) detectBalanceDrain(groups map[string][]stamped) []domain.Alert {
	window := time.Duration(e.thresholds.DrainWindowMins) * time.Minute
	var alerts []domain.Alert

	for key, items := range groups {
		if len(items) == 0 {
			continue
		}
		start := items[0].ts
		total := 0.0

		for _, it := range items {
			amt, ok := it.row.Amount()
			if ok {
				total += amt
			}
			if it.ts.Sub(start) <= window && total >= e.thresholds.DrainAmount {
				all := make([]domain.CleanedRow, 0, len(items))
				for _, x := range items {
					all = append(all, x.row)
				}
				alerts = append(alerts, domain.Alert{
					ID:   fmt.Sprintf("ALERT_BALANCE_DRAIN_%s_%s", key, it.ts.Format(time.RFC3339)),
					Type: domain.AlertBalanceDrain,
					Reason: fmt.Sprintf("Total withdrawals %v in %d minutes",
						total, e.thresholds.DrainWindowMins),
					AccountNumber: accountOf(it.row),
					CustomerID:    it.row.Str(domain.FieldCustomerID),
					CreatedAt:     it.row.Str(domain.FieldTimestamp),
					Payload:       all,
				})
				break
			}
		}
	}
	return alerts
}

// detectDeviceMisuse groups the batch by DeviceID and raises one alert per
// device that appears on the configured number of transactions or more.
// Mostly relevant to UPI sources, where every row carries a device.
func (e *Engine) detectDeviceMisuse(rows []domain.CleanedRow) []domain.Alert {
	byDevice := make(map[string][]domain.CleanedRow)
	for _, r := range rows {
		dev := r.Str(domain.FieldDeviceID)
		if dev == "" {
			continue
		}
		byDevice[dev] = append(byDevice[dev], r)
	}

	var alerts []domain.Alert
	for dev, txns := range byDevice {
		if len(txns) < e.thresholds.DeviceTxnCount {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:            "ALERT_DEVICE_" + dev,
			Type:          domain.AlertDeviceMisuse,
			Reason:        fmt.Sprintf("Device %s used in %d transactions", dev, len(txns)),
			AccountNumber: accountOf(txns[0]),
			CustomerID:    txns[0].Str(domain.FieldCustomerID),
			CreatedAt:     txns[0].Str(domain.FieldTimestamp),
			Payload:       txns,
		})
	}
	return alerts
}

// detectAccountMismatch is a disabled hook. The check inherited from the
// source system compared an account number's suffix against itself and never
// consulted the CustomerID, so it could not detect anything; rather than
// guess at the intended semantics we keep the rule wired but inert.
// TODO: define real account/customer mismatch criteria with product before
// enabling this rule.
func (e *Engine) detectAccountMismatch(rows []domain.CleanedRow) []domain.Alert {
	return nil
}
