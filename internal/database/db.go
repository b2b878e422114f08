package coordinatordb

import "time"

const (
	ChallengeStatusUnused  = "unused"
	ChallengeStatusUsed    = "used"
	ChallengeStatusExpired = "expired"

	// ChallengeTTL is how long an unused challenge may be answered.
	ChallengeTTL = 2 * time.Minute

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)
