package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/sink"
	"github.com/aquamon-pt/aquamon/pkg/state"
)

// Publisher publishes to an external MQTT broker. All topics are retained
// so consumers that reconnect pick up the last known values.
type Publisher struct {
	client          pahomqtt.Client
	prefix          string
	discoveryPrefix string
}

func New(broker, prefix, discoveryPrefix string) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("aquamon-%s", uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("error connecting to mqtt broker %s: %w", broker, token.Error())
	}
	logrus.Infof("connected to mqtt broker %s", broker)

	return &Publisher{
		client:          client,
		prefix:          prefix,
		discoveryPrefix: discoveryPrefix,
	}, nil
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

func (p *Publisher) Announce(m *meter.Meter) error {
	for _, s := range sink.Sensors {
		cfg, err := json.Marshal(sink.Discovery(m, s, p.prefix))
		if err != nil {
			return err
		}
		err = p.publish(sink.DiscoveryTopic(p.discoveryPrefix, m.Number, s.Key), cfg)
		if err != nil {
			return err
		}
	}
	logrus.Debugf("announced %d sensors for meter %s", len(sink.Sensors), m.Number)
	return nil
}

func (p *Publisher) Publish(m *meter.Meter, s *state.State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.publish(sink.StateTopic(p.prefix, m.Number), payload)
}

func (p *Publisher) Available(m *meter.Meter, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return p.publish(sink.AvailabilityTopic(p.prefix, m.Number), []byte(payload))
}

func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
