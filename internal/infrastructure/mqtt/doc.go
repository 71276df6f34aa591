// Package mqtt is the broker connection and topic grammar for the
// infoscreen fleet.
//
// MQTT is the only transport between the fleet and the server side.
// Raspberry Pi kiosks report under devices/..., Fully Kiosk tablets
// broadcast under fully/..., and the provisioning handshake has its own
// namespace keyed by customer code. The Topics type is the single place
// those names are spelled out.
//
// The Client wraps paho.mqtt.golang with the bits every process here
// needs: tracked subscriptions replayed after reconnect, a Last Will
// for offline detection, and panic recovery around message handlers.
//
//	client, err := mqtt.ConnectWithWill(cfg.MQTT,
//	    mqtt.Topics{}.BridgeStatus(), `{"status":"offline"}`)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTopics(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
