package portal

// Subscription is one contract on the account. The portal is inconsistent
// about the id field name between endpoints, the alternates cover the
// shapes seen in the wild.
type Subscription struct {
	SubscriptionID string `json:"subscriptionId"`
	ID             string `json:"id"`
	IDSubscription string `json:"idSubscription"`
}

// Identifier returns the subscription id regardless of which field the
// portal used.
func (s Subscription) Identifier() string {
	if s.SubscriptionID != "" {
		return s.SubscriptionID
	}
	if s.ID != "" {
		return s.ID
	}
	return s.IDSubscription
}

// MeterInfo is one meter record from the meters endpoint. The meter number
// either sits at the top level or nested under chaveContador.
type MeterInfo struct {
	NumeroContador string    `json:"numeroContador"`
	SubscriptionID string    `json:"subscriptionId"`
	IDSubscription string    `json:"idSubscription"`
	ChaveContador  *MeterKey `json:"chaveContador"`
	Morada         string    `json:"morada"`
}

type MeterKey struct {
	NumeroContador string `json:"numeroContador"`
}

// Number returns the meter number from whichever field carries it.
func (m MeterInfo) Number() string {
	if m.ChaveContador != nil && m.ChaveContador.NumeroContador != "" {
		return m.ChaveContador.NumeroContador
	}
	return m.NumeroContador
}

// Subscription returns the subscription id the meter belongs to, empty when
// the record does not carry one.
func (m MeterInfo) Subscription() string {
	if m.SubscriptionID != "" {
		return m.SubscriptionID
	}
	return m.IDSubscription
}

// ReadingRecord is one raw consumption reading. Consumption defaults to
// zero when the portal omits it. Cil is an opaque delivery point id passed
// through untouched.
type ReadingRecord struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
	Cil         string  `json:"cil"`
}
