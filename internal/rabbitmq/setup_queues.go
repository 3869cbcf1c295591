package rabbitmq

// Ключи маршрутизации событий клиента.
const (
	RoutingKeyRoute   = "onboarding.route"
	RoutingKeySession = "onboarding.session"
)

// QueueConfig — очередь и её ключ привязки.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// OnboardingQueues — очереди для аналитики онбординга.
func OnboardingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "onboarding.events", RoutingKey: "onboarding.#"},
	}
}
