package config

type CliConfig struct {
	Server   string `default:"https://bdigital.aguasdecoimbra.pt/uPortal2/coimbra"`
	APIKey   string `default:"fj894y82-h351-5f11-89f3-u2389ru893n1"`
	Username string
	Password string

	SubscriptionID string
	MeterNumber    string
	MetersFile     string

	UpdateInterval string `default:"15m"`
	HistoryDays    int    `default:"90"`

	FilterNegative   bool   `default:"true"`
	CumulativePolicy string `default:"advance-on-positive"`

	StateFile string `default:"/var/lib/aquamon/state.json"`
	TokenFile string `default:"/var/lib/aquamon/token"`

	Sink            string `default:"mqtt"`
	MQTTBroker      string `default:"tcp://127.0.0.1:1883"`
	MQTTPrefix      string `default:"aquamon"`
	DiscoveryPrefix string `default:"homeassistant"`
	EmbeddedAddress string `default:":1883"`

	HTTPAddress string `default:":8080"`

	LogLevel string `default:"info"`
}

// Meters resolves the monitored meter list: the YAML file when one is
// configured, otherwise the single meter from flags. An empty result means
// the caller should discover meters from the portal.
func (c *CliConfig) Meters() ([]Meter, error) {
	if c.MetersFile != "" {
		return LoadMeters(c.MetersFile)
	}
	if c.MeterNumber == "" {
		return nil, nil
	}
	return []Meter{{
		Number:         c.MeterNumber,
		SubscriptionID: c.SubscriptionID,
	}}, nil
}
