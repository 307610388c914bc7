package usecase

import (
	"go-shortlink/internal/redirect/domain"

	"github.com/samber/lo"
)

// pickDestination draws r uniformly in [0, total) over the active variants
// and walks them in stored order, subtracting weights until r goes negative.
// With no usable variant the base destination wins.
func pickDestination(base string, variants []domain.Variant, intn func(int) int) string {
	candidates := lo.Filter(variants, func(v domain.Variant, _ int) bool {
		return v.Active && v.Weight > 0
	})
	total := lo.SumBy(candidates, func(v domain.Variant) int { return v.Weight })
	if total <= 0 {
		return base
	}

	r := intn(total)
	for _, v := range candidates {
		r -= v.Weight
		if r < 0 {
			return v.DestinationURL
		}
	}
	return candidates[len(candidates)-1].DestinationURL
}
