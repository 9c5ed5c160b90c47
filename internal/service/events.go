package service

// Pub/sub channels carrying market events to the websocket hub and any
// other subscriber.
const (
	ChannelProbabilities = "probabilities"
	ChannelQuestions     = "questions"
	ChannelVotes         = "votes"
)
