package brackets

import (
	"fmt"

	"github.com/padelops/tournament-engine/models"
)

// SnakeDistribute spreads a seed-sorted entry list over groupCount groups
// with serpentine assignment: the direction flips every time the boundary
// is reached, so seed 1 and seed 2*G land in the same group, as do 2 and
// 2*G-1, and so on. The input must already be ordered strongest first.
func SnakeDistribute(entries []*models.Entry, groupCount int) ([][]*models.Entry, error) {
	if groupCount < 1 {
		return nil, fmt.Errorf("group count must be positive, got %d", groupCount)
	}
	if len(entries) < groupCount {
		return nil, fmt.Errorf("cannot distribute %d entries over %d groups", len(entries), groupCount)
	}

	groups := make([][]*models.Entry, groupCount)
	idx := 0
	forward := true
	for _, entry := range entries {
		groups[idx] = append(groups[idx], entry)
		if forward {
			if idx == groupCount-1 {
				forward = false
			} else {
				idx++
			}
		} else {
			if idx == 0 {
				forward = true
			} else {
				idx--
			}
		}
	}
	return groups, nil
}
