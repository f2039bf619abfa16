package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"callastar_back_end/internal/events"
)

// ReleaseHeldPayments passe en READY les paiements dont la période de rétention est écoulée.
// Idempotent : un second passage au même instant ne modifie rien.
// Un événement par créateur concerné permet d'invalider son solde en cache.
func (s *Service) ReleaseHeldPayments(ctx context.Context) (int64, error) {
	now := s.now()
	byCreator, err := s.repo.ReleaseHeldPayments(ctx, now)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, creatorID := range slices.Sorted(maps.Keys(byCreator)) {
		count := byCreator[creatorID]
		total += count
		s.emit(ctx, events.Event{Type: events.PaymentsReleased, EntityType: "creator", EntityID: creatorID,
			CreatorID: creatorID, Actor: SystemActor,
			Attributes: map[string]string{"count": fmt.Sprint(count), "released_at": now.Format(time.RFC3339)}})
	}
	if total > 0 {
		s.logger.Info("🔓 Paiements libérés", "count", total, "creators", len(byCreator))
	}
	return total, nil
}
