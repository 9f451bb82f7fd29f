// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 10 * time.Second

// mqttSub is a topic subscription that is (re)established on every connect.
type mqttSub struct {
	topic   string
	handler mqtt.MessageHandler
}

// connectMQTT connects a client to broker. subs are subscribed from the
// connect callback so they survive an automatic reconnect.
func connectMQTT(component, broker, clientID string, subs ...mqttSub) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(60 * time.Second).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(client mqtt.Client) {
		for _, s := range subs {
			if err := subscribe(client, component, s); err != nil {
				log.Printf("%v", err)
			}
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("%s: MQTT connection lost: %v (will auto-reconnect)", component, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("%s: MQTT connect to %s: timeout", component, broker)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("%s: MQTT connect to %s: %w", component, broker, token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s", component, broker)
	return client, nil
}

func subscribe(client mqtt.Client, component string, s mqttSub) error {
	token := client.Subscribe(s.topic, 0, s.handler)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("%s: subscribe %s: timeout", component, s.topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("%s: subscribe %s: %w", component, s.topic, token.Error())
	}
	log.Printf("%s: subscribed to %s", component, s.topic)
	return nil
}

// mqttPublisher publishes with QoS 0. Retained topics keep the last value
// for late subscribers such as a freshly opened web page.
type mqttPublisher struct {
	client   mqtt.Client
	retained map[string]bool
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, p.retained[topic], payload)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}
