package orderstatus

import "xquisito-tap/internal/domain"

// statusOrder is the kitchen flow a dish moves through.
var statusOrder = []domain.DishStatus{
	domain.DishPending,
	domain.DishInProgress,
	domain.DishReady,
	domain.DishDelivered,
}

type Group struct {
	Status domain.DishStatus  `json:"status"`
	Dishes []domain.DishOrder `json:"dishes"`
}

type Summary struct {
	Groups       []Group                   `json:"groups"`
	Counts       map[domain.DishStatus]int `json:"counts"`
	TotalDishes  int                       `json:"totalDishes"`
	AllDelivered bool                      `json:"allDelivered"`
}

// Summarize groups dishes by status in kitchen order. Unknown statuses are listed last.
func Summarize(o domain.TapOrder) Summary {
	byStatus := make(map[domain.DishStatus][]domain.DishOrder)
	var unknown []domain.DishStatus
	known := make(map[domain.DishStatus]bool, len(statusOrder))
	for _, s := range statusOrder {
		known[s] = true
	}
	for _, d := range o.Dishes {
		st := d.Status
		if st == "" {
			st = domain.DishPending
		}
		if !known[st] {
			if _, seen := byStatus[st]; !seen {
				unknown = append(unknown, st)
			}
		}
		byStatus[st] = append(byStatus[st], d)
	}

	s := Summary{Counts: make(map[domain.DishStatus]int), TotalDishes: len(o.Dishes)}
	for _, st := range append(append([]domain.DishStatus(nil), statusOrder...), unknown...) {
		dishes := byStatus[st]
		if len(dishes) == 0 {
			continue
		}
		s.Groups = append(s.Groups, Group{Status: st, Dishes: dishes})
		s.Counts[st] = len(dishes)
	}
	s.AllDelivered = s.TotalDishes > 0 && s.Counts[domain.DishDelivered] == s.TotalDishes
	return s
}
