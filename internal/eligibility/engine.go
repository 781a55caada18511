// Package eligibility decides whether items on an order may be returned.
//
// The engine is a pure function of an order snapshot, the active policy set,
// the items requested, and the stated reason. It performs no I/O, mutates
// nothing, and always returns a decision; callers branch on the reason code.
package eligibility

import (
	"fmt"
	"strings"
	"time"

	"return-eligibility-api/internal/models"
)

// ReturnCountThreshold is the rolling 30-day return count at or above which
// a request is routed to manual review.
const ReturnCountThreshold = 3

// Sentinel policy labels used when a decision is made before (or instead of)
// policy resolution.
const (
	PolicyNotApplicable  = "N/A"
	DamagePolicyLabel    = "Damage Inspection Policy"
	FraudPolicyLabel     = "Fraud Prevention Policy"
	FrequencyPolicyLabel = "Return Frequency Policy"
	FinalSalePolicyLabel = "Final Sale Policy"
)

// damageKeywords route a return reason to inspection. Matching is
// case-insensitive substring containment.
var damageKeywords = []string{"damaged", "defective", "broken", "shattered", "torn"}

// evaluation carries the validated working state through the rule pipeline.
type evaluation struct {
	order    models.Order
	items    []models.OrderItem // items actually belonging to the order
	reason   string
	policies []models.ReturnPolicy
	days     int
}

// rules run in a fixed precedence order; the first rule that produces a
// decision wins. New rules must be inserted at an explicit position.
var rules = []func(*evaluation) *models.EligibilityDecision{
	checkDamageReason,
	checkFraudFlag,
	checkReturnFrequency,
	checkItemExclusions,
}

// OrderNotFound is the decision for an order ID that resolves to nothing.
// The order age is unknown, so days_since_order is omitted.
func OrderNotFound(orderID string) models.EligibilityDecision {
	return models.EligibilityDecision{
		Eligible:      false,
		ReasonCode:    models.ReasonDataError,
		PolicyApplied: PolicyNotApplicable,
		Message:       fmt.Sprintf("Order %s not found.", orderID),
	}
}

// DataError is the decision used when a store read fails mid-evaluation.
// The fault itself is the caller's to log; customers only ever see the
// generic message.
func DataError() models.EligibilityDecision {
	return models.EligibilityDecision{
		Eligible:      false,
		ReasonCode:    models.ReasonDataError,
		PolicyApplied: PolicyNotApplicable,
		Message:       "An error occurred while checking eligibility.",
	}
}

// Evaluate runs the rule pipeline over an order snapshot and returns a fresh
// decision. itemIDs not belonging to the order are dropped silently; an empty
// working set after filtering is a data error. now and the order date must be
// in the same clock frame.
func Evaluate(order models.Order, policies []models.ReturnPolicy, itemIDs []int64, returnReason string, now time.Time) models.EligibilityDecision {
	days := daysSince(order.OrderDate, now)

	ev := &evaluation{
		order:    order,
		items:    filterItems(order.Items, itemIDs),
		reason:   returnReason,
		policies: policies,
		days:     days,
	}

	if len(ev.items) == 0 {
		return models.EligibilityDecision{
			Eligible:       false,
			ReasonCode:     models.ReasonDataError,
			PolicyApplied:  PolicyNotApplicable,
			Message:        "No valid items found to return.",
			DaysSinceOrder: &days,
		}
	}

	for _, rule := range rules {
		if d := rule(ev); d != nil {
			return *d
		}
	}

	policy, ok := resolvePolicy(ev)
	if !ok {
		return models.EligibilityDecision{
			Eligible:       false,
			ReasonCode:     models.ReasonDataError,
			PolicyApplied:  PolicyNotApplicable,
			Message:        "Unable to determine applicable return policy.",
			DaysSinceOrder: &days,
		}
	}

	if days > policy.ReturnWindowDays {
		return models.EligibilityDecision{
			Eligible:       false,
			ReasonCode:     models.ReasonTimeExpired,
			PolicyApplied:  policy.PolicyName,
			Message:        fmt.Sprintf("Order is %d days old. Return window is %d days.", days, policy.ReturnWindowDays),
			DaysSinceOrder: &days,
		}
	}

	return models.EligibilityDecision{
		Eligible:       true,
		ReasonCode:     models.ReasonApproved,
		PolicyApplied:  policy.PolicyName,
		Message:        fmt.Sprintf("Return approved under %s (%d-day window).", policy.PolicyName, policy.ReturnWindowDays),
		DaysSinceOrder: &days,
	}
}

// daysSince is the whole-day truncating difference between now and the
// order date.
func daysSince(orderDate, now time.Time) int {
	return int(now.Sub(orderDate) / (24 * time.Hour))
}

// filterItems keeps only the requested items that belong to the order.
func filterItems(items []models.OrderItem, itemIDs []int64) []models.OrderItem {
	requested := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		requested[id] = true
	}

	var kept []models.OrderItem
	for _, item := range items {
		if requested[item.ID] {
			kept = append(kept, item)
		}
	}
	return kept
}

// checkDamageReason runs first: a damaged fraud-flagged customer is reported
// as damaged, not as risk.
func checkDamageReason(ev *evaluation) *models.EligibilityDecision {
	reason := strings.ToLower(ev.reason)
	for _, keyword := range damageKeywords {
		if strings.Contains(reason, keyword) {
			days := ev.days
			return &models.EligibilityDecision{
				Eligible:             false,
				ReasonCode:           models.ReasonDamagedManual,
				PolicyApplied:        DamagePolicyLabel,
				Message:              "Damaged or defective items require inspection by a specialist. Escalating to a human agent.",
				DaysSinceOrder:       &days,
				RequiresManualReview: true,
			}
		}
	}
	return nil
}

func checkFraudFlag(ev *evaluation) *models.EligibilityDecision {
	if !ev.order.Customer.FraudFlag {
		return nil
	}
	days := ev.days
	return &models.EligibilityDecision{
		Eligible:             false,
		ReasonCode:           models.ReasonRiskManual,
		PolicyApplied:        FraudPolicyLabel,
		Message:              "Account flagged for review. Please connect with a specialist.",
		DaysSinceOrder:       &days,
		RequiresManualReview: true,
	}
}

func checkReturnFrequency(ev *evaluation) *models.EligibilityDecision {
	if ev.order.Customer.ReturnCount30 < ReturnCountThreshold {
		return nil
	}
	days := ev.days
	return &models.EligibilityDecision{
		Eligible:             false,
		ReasonCode:           models.ReasonRiskManual,
		PolicyApplied:        FrequencyPolicyLabel,
		Message:              "Your account has multiple recent returns. A specialist will review your request.",
		DaysSinceOrder:       &days,
		RequiresManualReview: true,
	}
}

// checkItemExclusions rejects when any requested item is final sale or not
// returnable. Either flag alone blocks the return.
func checkItemExclusions(ev *evaluation) *models.EligibilityDecision {
	var excluded []string
	for _, item := range ev.items {
		if !item.IsReturnable || item.IsFinalSale {
			excluded = append(excluded, item.ProductName)
		}
	}
	if len(excluded) == 0 {
		return nil
	}
	days := ev.days
	return &models.EligibilityDecision{
		Eligible:       false,
		ReasonCode:     models.ReasonItemExcluded,
		PolicyApplied:  FinalSalePolicyLabel,
		Message:        fmt.Sprintf("The following items are final sale and cannot be returned: %s", strings.Join(excluded, ", ")),
		DaysSinceOrder: &days,
	}
}

// resolvePolicy picks the single policy whose window governs the return:
//
//  1. VIP Extended, for Gold and Platinum customers, overrides everything.
//  2. Otherwise the most generous (maximum window) active policy whose
//     category label matches a category present in the working set.
//  3. Otherwise the General policy.
//
// Ties on window, and duplicate active policies sharing a category label,
// resolve to the lowest policy ID so the outcome is stable across reads.
func resolvePolicy(ev *evaluation) (models.ReturnPolicy, bool) {
	tier := ev.order.Customer.LoyaltyTier
	if tier == models.TierGold || tier == models.TierPlatinum {
		if p, ok := findByCategory(ev.policies, models.PolicyVIPExtended); ok {
			return p, true
		}
	}

	categories := make(map[string]bool)
	for _, item := range ev.items {
		if item.Category != "" {
			categories[string(item.Category)] = true
		}
	}

	var best models.ReturnPolicy
	found := false
	for _, p := range ev.policies {
		if !p.IsActive || !categories[string(p.Category)] {
			continue
		}
		if !found || p.ReturnWindowDays > best.ReturnWindowDays ||
			(p.ReturnWindowDays == best.ReturnWindowDays && p.ID < best.ID) {
			best = p
			found = true
		}
	}
	if found {
		return best, true
	}

	return findByCategory(ev.policies, models.PolicyGeneral)
}

// findByCategory returns the lowest-ID active policy with the given label.
func findByCategory(policies []models.ReturnPolicy, category models.PolicyCategory) (models.ReturnPolicy, bool) {
	var best models.ReturnPolicy
	found := false
	for _, p := range policies {
		if !p.IsActive || p.Category != category {
			continue
		}
		if !found || p.ID < best.ID {
			best = p
			found = true
		}
	}
	return best, found
}
