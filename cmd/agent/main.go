// Command agent joins the configured LiveKit rooms as the YesChef cooking
// assistant and keeps its claims about the user's camera honest.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	orchestration "github.com/yeschef/yeschef-agent/core"
	"github.com/yeschef/yeschef-agent/core/config"
	"github.com/yeschef/yeschef-agent/core/models/gemini"
	"github.com/yeschef/yeschef-agent/core/recipes"
	"github.com/yeschef/yeschef-agent/core/rooms/livekit"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Error("agent stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("agent exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	registry := orchestration.NewRegistry()
	defer registry.CloseAll()

	srv := &http.Server{
		Addr:              cfg.Status.Addr,
		Handler:           newStatusHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("status server started", "addr", cfg.Status.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	for _, room := range cfg.LiveKit.Rooms {
		g.Go(func() error {
			return runRoom(gctx, cfg, room, registry)
		})
	}

	return g.Wait()
}

// runRoom serves one room until ctx ends or either connection drops. A failed
// room is logged and does not stop the others.
func runRoom(ctx context.Context, cfg *config.Config, roomName string, registry *orchestration.Registry) error {
	relay := &eventRelay{}

	room, err := livekit.Join(ctx, cfg.LiveKit.URL, livekit.ConnectInfo{
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		RoomName:  roomName,
		Identity:  cfg.LiveKit.Identity,
	}, relay.Handle)
	if err != nil {
		logger.ErrorContext(ctx, "failed to join room", "room", roomName, "error", err)
		return nil
	}
	defer room.Disconnect()

	recipe, err := recipes.ParseRoomMetadata(room.Metadata())
	if err != nil {
		logger.WarnContext(ctx, "could not parse room metadata, continuing without recipe", "room", roomName, "error", err)
	}
	logger.InfoContext(ctx, "loaded recipe", "room", roomName, "title", recipe.DisplayTitle())

	prompt, err := recipes.SystemPrompt(recipe)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build system prompt", "room", roomName, "error", err)
		return nil
	}

	model, err := gemini.Dial(ctx, gemini.Config{
		URL:               cfg.Model.URL,
		APIKey:            cfg.Model.APIKey,
		Model:             cfg.Model.Model,
		Voice:             cfg.Model.Voice,
		SystemInstruction: prompt,
		FrameMimeType:     cfg.Model.FrameMimeType,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to start model session", "room", roomName, "error", err)
		return nil
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Debug("suppressed model close error", "room", roomName, "error", err)
		}
	}()

	session, err := orchestration.NewSession(
		orchestration.WithConfig(cfg.Vision),
		orchestration.WithVideoGate(model),
		orchestration.WithConversationModel(model),
		orchestration.WithFrameSink(model),
		orchestration.WithRoomName(roomName),
	)
	if err != nil {
		return err
	}
	session.Start(ctx)
	registry.Add(session)
	defer func() {
		registry.Remove(session.ID)
		session.Close()
	}()

	relay.Attach(session)

	go func() {
		instructions := recipes.OpeningInstructions(recipe, session.VisionStatus())
		if err := session.SendOpeningUtterance(ctx, instructions); err != nil {
			logger.WarnContext(ctx, "opening utterance not delivered", "room", roomName, "error", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-room.Done():
		logger.WarnContext(ctx, "room connection ended", "room", roomName)
	case <-model.Done():
		logger.WarnContext(ctx, "model session ended", "room", roomName)
	}
	return nil
}
