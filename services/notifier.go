package services

import (
	"fmt"

	"github.com/Dosada05/streakmatch/models"
)

const (
	EventMatchCreated    = "MATCH_CREATED"
	EventMatchJoined     = "MATCH_JOINED"
	EventMatchLeft       = "MATCH_LEFT"
	EventMatchDeleted    = "MATCH_DELETED"
	EventMatchForfeited  = "MATCH_FORFEITED"
	EventMatchEdited     = "MATCH_EDITED"
	EventResultSubmitted = "RESULT_SUBMITTED"
	EventMatchCompleted  = "MATCH_COMPLETED"
	// EventMatchesLive has no rooms; it only tells caches that statuses moved.
	EventMatchesLive = "MATCHES_LIVE"
)

// Notifier receives a change event after a mutation has been stored. Delivery is
// best effort; nothing in the engine waits on it.
type Notifier interface {
	Publish(eventType string, payload interface{}, rooms ...string)
}

// Notifiers fans an event out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Publish(eventType string, payload interface{}, rooms ...string) {
	for _, n := range ns {
		if n != nil {
			n.Publish(eventType, payload, rooms...)
		}
	}
}

type NoopNotifier struct{}

func (NoopNotifier) Publish(string, interface{}, ...string) {}

func UserRoom(userID string) string {
	return "user_" + userID
}

func MatchRoom(matchID fmt.Stringer) string {
	return "match_" + matchID.String()
}

// matchRooms returns the match room plus the room of every party and of extra.
func matchRooms(match *models.Match, extra ...string) []string {
	rooms := []string{MatchRoom(match.ID)}
	seen := make(map[string]bool)
	for _, id := range append(match.PartyIDs(), extra...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rooms = append(rooms, UserRoom(id))
	}
	return rooms
}
