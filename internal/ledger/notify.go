package ledger

import (
	"context"

	"callastar_back_end/internal/models"
	"callastar_back_end/internal/utils"
)

// sideEffect exécute fn avec son propre délai ; un échec est journalisé, jamais propagé.
// Le contexte est détaché de l'appelant : une requête HTTP terminée n'annule pas l'envoi.
func (s *Service) sideEffect(ctx context.Context, name string, fn func(ctx context.Context) error) {
	effectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideEffectTimeout)
	defer cancel()

	if err := fn(effectCtx); err != nil {
		s.logger.Warn("⚠️ Effet secondaire échoué", "effect", name, "error", err)
	}
}

func (s *Service) notifyInApp(ctx context.Context, userID string, kind models.NotificationType, title, message, link string) {
	s.sideEffect(ctx, "notification:"+string(kind), func(ctx context.Context) error {
		return s.repo.CreateNotification(ctx, &models.Notification{
			ID:        s.newID(),
			UserID:    userID,
			Type:      kind,
			Title:     title,
			Message:   message,
			Link:      link,
			CreatedAt: s.now(),
		})
	})
}

func (s *Service) sendEmail(ctx context.Context, to string, content utils.EmailContent, attachments ...utils.Attachment) {
	if s.mailer == nil || to == "" {
		return
	}
	s.sideEffect(ctx, "email", func(ctx context.Context) error {
		return utils.SendTemplated(ctx, s.mailer, to, content, attachments...)
	})
}

// notifyCreator envoie la notification in-app puis l'email au créateur.
func (s *Service) notifyCreator(ctx context.Context, creator *models.Creator, kind models.NotificationType, title, message, link string, content utils.EmailContent, attachments ...utils.Attachment) {
	s.notifyInApp(ctx, creator.UserID, kind, title, message, link)
	s.sendEmail(ctx, creator.Email, content, attachments...)
}

// loadCreator charge le créateur pour un effet secondaire ; nil si introuvable.
func (s *Service) loadCreator(ctx context.Context, creatorID string) *models.Creator {
	creator, err := s.repo.FindCreatorByID(ctx, creatorID)
	if err != nil {
		s.logger.Warn("⚠️ Créateur introuvable pour notification", "creator_id", creatorID, "error", err)
		return nil
	}
	return creator
}
