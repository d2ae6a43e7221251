// Package notifier translates committed roster mutations into topic-scoped
// change events. Publishing is decoupled from state correctness: a failed
// publish is reported to the caller and logged, never rolled back.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/internal/pubsub"
	"github.com/openplay/roster-service/pkg/logger"
)

type ChangeNotifier struct {
	pub pubsub.Publisher
	l   logger.Logger
}

func NewChangeNotifier(pub pubsub.Publisher, l logger.Logger) *ChangeNotifier {
	return &ChangeNotifier{pub: pub, l: l}
}

func (n *ChangeNotifier) RosterChanged(ctx context.Context, ev models.RosterChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal roster change: %w", err)
	}

	topic := models.RosterTopic(ev.GameID)
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	n.l.Debugf(ctx, "Published roster change - topic: %s, change: %s", topic, ev.ChangeType)
	return nil
}

func (n *ChangeNotifier) ProfileChanged(ctx context.Context, ev models.ProfileChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal profile change: %w", err)
	}

	topic := models.ProfileTopic(ev.ProfileID)
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	n.l.Debugf(ctx, "Published profile change - topic: %s, status: %s", topic, ev.Status)
	return nil
}
