// Package ws provides the websocket broadcast channel.
//
// Every peer that connects to /ws joins a hub. Text messages from a peer are
// echoed back to it as "Server received: <message>", and Hub.Broadcast
// delivers a message to every connected peer. Scripts reach the hub through
// the render bridge's broadcast capability.
//
// Message flow (Client → Server):
//   - any text frame: echoed to the sender
//
// Message flow (Server → Client):
//   - echo: reply to the sender's own message
//   - broadcast: text pushed to all peers
//
// Example Usage:
//
//	hub := ws.NewHub(logger)
//	go hub.Run(ctx)
//	router.GET("/ws", ws.NewHandler(hub, logger).HandleConnection)
package ws
