package reconcile

import (
	"encoding/json"

	"petit-storefront/internal/domain"
)

// Merge combines the management listing with the seller service listing.
// Entries are keyed by id; a secondary entry never replaces a primary one.
// Entries without an id are keyed by their JSON so they do not collide.
// The result keeps first-seen order.
func Merge(primary, secondary []domain.Business) []domain.Business {
	index := make(map[string]int, len(primary)+len(secondary))
	out := make([]domain.Business, 0, len(primary)+len(secondary))

	put := func(b domain.Business, overwrite bool) {
		key := mergeKey(b)
		if i, ok := index[key]; ok {
			if overwrite {
				out[i] = b
			}
			return
		}
		index[key] = len(out)
		out = append(out, b)
	}

	for _, b := range primary {
		put(b, true)
	}
	for _, b := range secondary {
		put(b, false)
	}
	return out
}

func mergeKey(b domain.Business) string {
	if b.ID != "" {
		return "id:" + b.ID
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "anon:" + b.Name
	}
	return "json:" + string(raw)
}
