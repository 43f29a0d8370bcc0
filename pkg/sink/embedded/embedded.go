package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/sirupsen/logrus"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/sink"
	"github.com/aquamon-pt/aquamon/pkg/state"
)

// Broker runs an embedded MQTT broker and publishes through its inline
// client. The daemon itself is the broker consumers connect to, no external
// broker needed.
type Broker struct {
	server          *mqttv2.Server
	prefix          string
	discoveryPrefix string
}

func Start(ctx context.Context, wg *sync.WaitGroup, address, prefix, discoveryPrefix string) (*Broker, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, err
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}
	logrus.Infof("embedded mqtt broker listening on %s", address)

	wg.Add(1)
	go func() {
		<-ctx.Done()
		server.Close()
		wg.Done()
	}()

	return &Broker{
		server:          server,
		prefix:          prefix,
		discoveryPrefix: discoveryPrefix,
	}, nil
}

func (b *Broker) Announce(m *meter.Meter) error {
	for _, s := range sink.Sensors {
		cfg, err := json.Marshal(sink.Discovery(m, s, b.prefix))
		if err != nil {
			return err
		}
		err = b.server.Publish(sink.DiscoveryTopic(b.discoveryPrefix, m.Number, s.Key), cfg, true, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) Publish(m *meter.Meter, s *state.State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = b.server.Publish(sink.StateTopic(b.prefix, m.Number), payload, true, 0)
	if err != nil {
		return err
	}

	// per field topics for consumers that do not speak the JSON payload
	for k, v := range s.Map() {
		err = b.server.Publish(fmt.Sprintf("%s/%s/%s", b.prefix, m.Number, k), []byte(fmt.Sprintf("%v", v)), true, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) Available(m *meter.Meter, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return b.server.Publish(sink.AvailabilityTopic(b.prefix, m.Number), []byte(payload), true, 0)
}

// Close is a no-op, the context watcher started in Start shuts the broker
// down.
func (b *Broker) Close() error {
	return nil
}
