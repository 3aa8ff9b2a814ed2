package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"

	"github.com/Anuj2862/EcoSort-AI/classifier"
	"github.com/Anuj2862/EcoSort-AI/db"
	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

// broadcaster is the part of *socketio.Server used to fan out events.
type broadcaster interface {
	BroadcastToNamespace(namespace string, event string, args ...interface{}) bool
}

type socketController struct {
	hub         broadcaster
	store       db.Store
	classifiers []classifier.Classifier
}

func newSocketController(hub broadcaster, store db.Store, classifiers []classifier.Classifier) *socketController {
	return &socketController{hub: hub, store: store, classifiers: classifiers}
}

func (c *socketController) register(server *socketio.Server) {
	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		c.emitModelInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestModelInfo", func(socket socketio.Conn) {
		c.emitModelInfo(socket)
	})

	server.OnEvent("/", "requestStats", func(socket socketio.Conn) {
		c.handleRequestStats(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})
}

func (c *socketController) modelInfo() modelsResponse {
	return modelsResponse{
		Mode:   classifier.Mode(len(c.classifiers)),
		Models: classifier.Describe(c.classifiers),
	}
}

func (c *socketController) emitModelInfo(socket socketio.Conn) {
	socket.Emit("modelInfo", c.modelInfo())
}

func (c *socketController) handleRequestStats(socket socketio.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := loadStatistics(ctx, c.store, time.Now())
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to load statistics for socket",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)))
		socket.Emit("statsError", map[string]string{"message": "unable to load statistics"})
		return
	}
	socket.Emit("stats", stats)
}

func (c *socketController) publishClassification(resp predictResponse) {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastToNamespace("/", "classification", resp)
}

func (c *socketController) publishAchievements(unlocked []models.Achievement) {
	if c.hub == nil {
		return
	}
	for _, ach := range unlocked {
		c.hub.BroadcastToNamespace("/", "achievementUnlocked", ach)
	}
}
