package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

var (
	mqttClient  pahomqtt.Client
	clientMutex sync.RWMutex
	brokerURL   = "tcp://0.0.0.0:1883" // Default MQTT broker URL
)

// MQTT connection handler
var connectHandler pahomqtt.OnConnectHandler = func(client pahomqtt.Client) {
	log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
}

// MQTT connection lost handler
var connectLostHandler pahomqtt.ConnectionLostHandler = func(client pahomqtt.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// SetBrokerURL allows configuration of the MQTT broker URL
func SetBrokerURL(url string) {
	brokerURL = url
}

// InitMQTT connects the shared publishing client.
func InitMQTT(clientName string) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientName)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := pahomqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	clientMutex.Lock()
	mqttClient = client
	clientMutex.Unlock()

	log.Info().Msg("MQTT client initialized successfully")
	return nil
}

// Connected reports whether InitMQTT succeeded and the client is still up.
func Connected() bool {
	clientMutex.RLock()
	defer clientMutex.RUnlock()
	return mqttClient != nil && mqttClient.IsConnected()
}

// ViewTopic is where a widget session's view snapshots are published.
func ViewTopic(sessionID string) string {
	return fmt.Sprintf("widget/%s/view", sessionID)
}

// Publish sends payload to topic with QoS 1.
func Publish(topic string, payload []byte) error {
	clientMutex.RLock()
	client := mqttClient
	clientMutex.RUnlock()
	if client == nil {
		return fmt.Errorf("MQTT client not initialized")
	}

	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, token.Error())
	}
	return nil
}

// PublishView encodes v as JSON and publishes it on the session's view topic.
func PublishView(sessionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return Publish(ViewTopic(sessionID), payload)
}

// CleanupMQTT disconnects the shared client
func CleanupMQTT() {
	clientMutex.Lock()
	defer clientMutex.Unlock()

	if mqttClient != nil {
		mqttClient.Disconnect(250)
		mqttClient = nil
		log.Info().Msg("MQTT client disconnected")
	}
}
