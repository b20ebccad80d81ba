package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vivadesk/examrelay/internal/app/orch"
	"github.com/vivadesk/examrelay/internal/domain"
)

type RoomController struct {
	orch *orch.Orchestrator
}

func NewRoomController(o *orch.Orchestrator) *RoomController {
	return &RoomController{orch: o}
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": c.orch.Rooms()})
}

func (c *RoomController) ListMembers(ctx *gin.Context) {
	roomID, err := domain.ParseRoomID(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	members := c.orch.Members(roomID)
	if members == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": roomID, "members": members})
}
