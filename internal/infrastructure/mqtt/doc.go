// Package mqtt provides MQTT client connectivity for the cloud mapper.
//
// This package manages:
//   - Connection to the local broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - A retained service health message with a "down" Last Will
//   - Topic builders for the local command scheme and the cloud bridge
//
// # Architecture
//
// Local agents and the cloud bridge share one broker. The mapper listens on
// the local command topics and publishes cloud status records to the
// bridged topics, which the broker forwards upstream.
//
//	Local agents ↔ MQTT Broker ↔ Mapper
//	                   ↕
//	              Cloud bridge
//
// # Security Considerations
//
//   - TLS is recommended when the broker is not on loopback (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), 1, converter.HandleMessage)
//
//	msg := mqtt.NewStringMessage(topics.CloudSmartREST(), "501,c8y_Restart")
//	err = client.PublishMessage(msg)
package mqtt
