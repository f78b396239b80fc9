// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes sent when a room connection cannot be established or is ended by the server.
const (
	InvalidAuthTokenError websocket.StatusCode = 3001 // Reconnect token was invalid, expired, or its seat is gone.
	InvalidRoomIDError    websocket.StatusCode = 3003 // Room named by a reconnect token no longer exists.
	RoomClosedError       websocket.StatusCode = 3004 // Room shut down while the connection was open.
)
