package topics

const (
	// Escrow
	GameEvents = "escrow_game_events"

	// DLQs
	GameEventsDLQ = "escrow_game_events_dlq"

	// Redis Pub/Sub
	GameUpdatesChannel = "escrow_game_updates"
)
