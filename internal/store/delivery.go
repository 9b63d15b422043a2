package store

// WebhookDelivery is one pending outbound notification. Status is pending,
// delivered, or dead after the retry budget is exhausted.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
}
