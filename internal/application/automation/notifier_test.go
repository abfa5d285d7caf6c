package automation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
)

func TestNotifyProcessingFailure_SendsOneNoticePerHRRecipient(t *testing.T) {
	configs := newFakeConfigs()
	notifs := newFakeNotifications()
	sender := &recordingSender{}
	clock := newFakeClock(testStart)
	n := NewFailureNotifier(configs, notifs, sender, clock, nil)

	item := domain.NewWorkItem(uuid.New(), uuid.New(), 3, testStart)
	configs.configs[item.CompanyID] = &domain.Config{
		CompanyID:           item.CompanyID,
		Enabled:             true,
		NotificationEnabled: true,
		HRRecipients:        []uuid.UUID{uuid.New(), uuid.New()},
	}

	require.NoError(t, n.NotifyProcessingFailure(context.Background(), item, "scoring failed"))

	assert.Equal(t, 2, sender.count())
	for _, sent := range sender.sent {
		assert.Equal(t, notification.TypeProcessingError, sent.Type)
		assert.Equal(t, notification.ChannelEmail, sent.Channel)
		assert.Equal(t, item.ResponseID, sent.AnalysisID)
	}

	// A second run for the same response dedupes.
	require.NoError(t, n.NotifyProcessingFailure(context.Background(), item, "scoring failed"))
	assert.Equal(t, 2, sender.count())
}

func TestNotifyProcessingFailure_SkipsWithoutConfigOrRecipients(t *testing.T) {
	configs := newFakeConfigs()
	notifs := newFakeNotifications()
	sender := &recordingSender{}
	n := NewFailureNotifier(configs, notifs, sender, newFakeClock(testStart), nil)

	// No config at all.
	item := domain.NewWorkItem(uuid.New(), uuid.New(), 3, testStart)
	require.NoError(t, n.NotifyProcessingFailure(context.Background(), item, "x"))
	assert.Zero(t, sender.count())

	// Config with notifications off.
	configs.configs[item.CompanyID] = &domain.Config{
		CompanyID:    item.CompanyID,
		Enabled:      true,
		HRRecipients: []uuid.UUID{uuid.New()},
	}
	require.NoError(t, n.NotifyProcessingFailure(context.Background(), item, "x"))
	assert.Zero(t, sender.count())
}
