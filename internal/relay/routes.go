package relay

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/Tayyab-Ali-786/Chattify/internal/rooms"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Origins are checked by OriginFilter before the upgrade.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RoomResponse is the public view of a room.
type RoomResponse struct {
	RoomID       string `json:"roomId"`
	Participants int    `json:"participants"`
}

// NewRouter wires the relay's HTTP surface onto a gin engine.
func NewRouter(hub *Hub, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(allowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/rooms", NewRoom(hub))
		apiGroup.GET("/rooms/:roomId", GetRoom(hub))
	}

	router.GET("/ws", ServeWs(hub))

	return router
}

// ServeWs upgrades the request and attaches a new participant to the hub.
// The optional "name" query parameter seeds the display name.
func ServeWs(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}

		client := NewClient(hub, conn, uuid.NewString(), c.Query("name"))
		if !hub.register(client) {
			conn.Close()
			return
		}

		// Start the client's read and write pumps in separate goroutines
		go client.WritePump()
		go client.ReadPump()
	}
}

// GetRoom reports how many participants are in a room.
func GetRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		occupants := hub.Registry().Occupants(roomID)
		if len(occupants) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}

		c.JSON(http.StatusOK, RoomResponse{
			RoomID:       roomID,
			Participants: len(occupants),
		})
	}
}

// NewRoom suggests a memorable name for a room nobody is in.
func NewRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, err := rooms.Generate(func(id string) bool {
			return len(hub.Registry().Occupants(id)) > 0
		})
		if err != nil {
			slog.Error("failed to generate room name", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create room"})
			return
		}

		c.JSON(http.StatusCreated, RoomResponse{RoomID: name})
	}
}

// OriginFilter rejects requests whose Origin is not allowed. A "*" entry
// allows every origin.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = c.GetHeader("Sec-WebSocket-Origin")
		}

		allowed := allowAll || slices.Contains(allowedOrigins, origin)
		if !allowed && origin != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Origin not allowed",
			})
			return
		}

		if allowed && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		// Handle preflight OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs each request through slog.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
