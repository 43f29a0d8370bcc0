package meter

// Meter identifies one monitored water meter.
type Meter struct {
	Number         string `json:"number"`
	SubscriptionID string `json:"subscriptionId"`
	Name           string `json:"name,omitempty"`
}

// DisplayName is the human readable device name for announcements.
func (m *Meter) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return "Águas de Coimbra " + m.Number
}
