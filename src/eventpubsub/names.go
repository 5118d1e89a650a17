package eventpubsub

// Webhook event names. A webhook key has the form "<EventName>:<secret>".
const (
	WebhookReceived          = "WebhookReceived"
	WebhookReceivedNtOrder   = "WebhookReceivedNtOrder"
	WebhookReceivedNtFlatten = "WebhookReceivedNtFlatten"
	WebhookReceivedNtInfo    = "WebhookReceivedNtInfo"
	WebhookReceivedMtOrder   = "WebhookReceivedMtOrder"
	WebhookReceivedMtFlatten = "WebhookReceivedMtFlatten"
	WebhookReceivedMtBalance = "WebhookReceivedMtBalance"
)

func topic(eventName string) string {
	return "webhook:" + eventName
}
