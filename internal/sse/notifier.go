package sse

import (
	"time"

	"github.com/JaimeRamones/prodflow/internal/models"
)

// HubNotifier broadcasts finished tenant pages through the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// NotifySyncSummary implements service.SummaryNotifier.
func (n *HubNotifier) NotifySyncSummary(summary *models.SyncSummary) {
	if n.hub.ClientCount() == 0 {
		return
	}
	event := EventTenantPageSynced
	if summary.Error != "" {
		event = EventTenantPageFailed
	}
	n.hub.Broadcast(&SyncEvent{Event: event, Summary: summary, Timestamp: time.Now().UTC()})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifySyncSummary(*models.SyncSummary) {}
