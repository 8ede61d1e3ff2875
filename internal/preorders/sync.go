package preorders

import (
	"log/slog"
)

// SyncPlan is the reconciliation of a persisted item set against a
// user-edited draft set. The three lists are disjoint: no item id ever
// appears in more than one.
type SyncPlan struct {
	Inserts []OrderItem
	Updates []OrderItem
	Deletes []int64
}

// IsEmpty reports whether the plan changes nothing.
func (p SyncPlan) IsEmpty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// PlanItemSync diffs desired drafts against existing items by stable id.
// A draft carrying a known id becomes an update with its historical
// advance payment preserved; a draft without one (or with an id that no
// longer exists, which is logged and degraded) becomes an insert. Items
// left unmatched are deletes. Blank drafts are dropped before diffing so
// an empty form row never synthesizes an item. Content-identical drafts
// produce no operation at all.
func PlanItemSync(logger *slog.Logger, orderID int64, existing []OrderItem, desired []ItemDraft) SyncPlan {
	remaining := make(map[int64]OrderItem, len(existing))
	for _, item := range existing {
		remaining[item.ID] = item
	}

	var plan SyncPlan
	for _, draft := range desired {
		if draft.IsBlank() {
			continue
		}

		if draft.ID != nil {
			prev, ok := remaining[*draft.ID]
			if ok {
				delete(remaining, *draft.ID)
				next := applyDraft(prev, draft)
				if !itemContentEqual(prev, next) {
					plan.Updates = append(plan.Updates, next)
				}
				continue
			}
			if logger != nil {
				logger.Warn("draft references missing item, degrading to insert",
					slog.Int64("order_id", orderID), slog.Int64("item_id", *draft.ID))
			}
		}

		plan.Inserts = append(plan.Inserts, OrderItem{
			OrderID:        orderID,
			ProductName:    draft.ProductName,
			Shade:          draft.Shade,
			Size:           draft.Size,
			Link:           draft.Link,
			Quantity:       draft.Quantity,
			Price:          draft.Price,
			AdvancePayment: draft.AdvancePayment,
		})
	}

	for _, item := range existing {
		if _, ok := remaining[item.ID]; ok {
			plan.Deletes = append(plan.Deletes, item.ID)
		}
	}

	return plan
}

// applyDraft copies editable fields onto the persisted item. The advance
// payment is history, not an editable field; it survives the edit.
func applyDraft(prev OrderItem, draft ItemDraft) OrderItem {
	next := prev
	next.ProductName = draft.ProductName
	next.Shade = draft.Shade
	next.Size = draft.Size
	next.Link = draft.Link
	next.Quantity = draft.Quantity
	next.Price = draft.Price
	return next
}

func itemContentEqual(a, b OrderItem) bool {
	return a.ProductName == b.ProductName &&
		a.Shade == b.Shade &&
		a.Size == b.Size &&
		a.Link == b.Link &&
		a.Quantity == b.Quantity &&
		a.Price.Equal(b.Price)
}

// MergedItems returns the item set an order will hold after the plan is
// applied: untouched existing items, updated items, then inserts.
func MergedItems(existing []OrderItem, plan SyncPlan) []OrderItem {
	deleted := make(map[int64]bool, len(plan.Deletes))
	for _, id := range plan.Deletes {
		deleted[id] = true
	}
	updated := make(map[int64]OrderItem, len(plan.Updates))
	for _, item := range plan.Updates {
		updated[item.ID] = item
	}

	merged := make([]OrderItem, 0, len(existing)+len(plan.Inserts))
	for _, item := range existing {
		if deleted[item.ID] {
			continue
		}
		if next, ok := updated[item.ID]; ok {
			merged = append(merged, next)
			continue
		}
		merged = append(merged, item)
	}
	merged = append(merged, plan.Inserts...)
	return merged
}
