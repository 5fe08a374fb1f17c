package rabbitmq

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetRecurrentsQueues возвращает очереди движка материализации.
// Очередь posted потребляет внешний пайплайн уведомлений.
func GetRecurrentsQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "recurrents.posted", RoutingKey: "posted"},
	}
}
