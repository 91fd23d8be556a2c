package api

// historyResponseLimit caps how many chat messages and alerts the history
// endpoints return.
const historyResponseLimit = 50

// maxUpgradeLevel is what the admin max-upgrades tool sets upgrade levels to.
const maxUpgradeLevel = 100

// validUsername checks the registration constraints on a username.
func validUsername(username string) bool {
	return len(username) >= 3 && len(username) <= 20
}
