package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/alert"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/test/util"
)

func TestPublisherMosquitto(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mosquitto container test in short mode")
	}
	ctx := context.Background()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer cleanup()

	received := make(chan paho.Message, 2)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("fillcast-sub"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(100)
	tok = sub.Subscribe(DefaultTopicPrefix+"/+/overflow", 1, func(_ paho.Client, m paho.Message) { received <- m })
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	pub, err := NewPublisher(Config{Broker: broker, QoS: 1})
	require.NoError(t, err)
	defer pub.Disconnect()

	n, err := pub.Notify(ctx, []alert.Alert{{SiteID: "A", Date: model.MustDay("2025-03-11"), FillPct: 0.82, PredVolumeM3: 0.9}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case m := <-received:
		assert.Equal(t, "fillcast/sites/A/overflow", m.Topic())
		var msg message
		require.NoError(t, json.Unmarshal(m.Payload(), &msg))
		assert.Equal(t, "A", msg.SiteID)
		assert.NotEmpty(t, msg.AlertID)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
