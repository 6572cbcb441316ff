package services

import (
	"time"

	"github.com/Dosada05/streakmatch/models"
)

type leaveAction int

const (
	leaveDelete leaveAction = iota + 1
	leaveForfeit
	leaveDepart
)

func (a leaveAction) String() string {
	switch a {
	case leaveDelete:
		return "deleted"
	case leaveForfeit:
		return "forfeited"
	case leaveDepart:
		return "departed"
	}
	return "unknown"
}

type leaveDecision struct {
	action leaveAction
	role   models.Role
	side   models.TeamSide
	// unopposed records that the decision assumed nobody was seated against the
	// host. The store re-checks it when it applies the decision.
	unopposed bool
}

// decideLeave says what happens if userID leaves match at now.
//
//	host, no opponent                 delete
//	host, opponent, inside window     forfeit
//	host, opponent, outside window    delete
//	other, opponent, inside window    forfeit
//	other, otherwise                  plain departure
func decideLeave(match *models.Match, userID string, now time.Time, window time.Duration) (leaveDecision, error) {
	role, side, ok := match.RoleOf(userID)
	if !ok {
		return leaveDecision{}, ErrNotMatchParty
	}
	d := leaveDecision{role: role, side: side, unopposed: !match.HasOpponent()}
	within := match.WithinForfeitWindow(now, window)

	switch {
	case role == models.RoleHost && !match.HasOpponent():
		d.action = leaveDelete
	case role == models.RoleHost && within:
		d.action = leaveForfeit
	case role == models.RoleHost:
		d.action = leaveDelete
	case match.HasOpponent() && within:
		d.action = leaveForfeit
	default:
		d.action = leaveDepart
	}
	return d, nil
}
