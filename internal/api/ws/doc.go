// Package ws serves the lifecycle channels over a WebSocket.
//
// Every connection is both a caller and a push subscriber. Clients send
// call frames and receive result, not_implemented or error frames carrying
// the same id. Push notifications arrive as event frames in the order they
// were published; a client too slow to drain them loses events rather
// than stalling the backend.
//
//	-> {"type":"call","id":"1","channel":"timer-background","method":"startBackgroundTask","arguments":{"reason":"focus"}}
//	<- {"type":"result","id":"1","channel":"timer-background","method":"startBackgroundTask","result":{"success":true,"taskId":1}}
//	<- {"type":"event","id":"evt_...","channel":"timer-background","method":"backgroundTaskStarted","arguments":{"taskId":1},"timestamp":...}
package ws
