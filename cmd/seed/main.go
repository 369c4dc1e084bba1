package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"confbooking/internal/config"
	"confbooking/internal/database"
	"confbooking/internal/domain"
	"confbooking/internal/modules/reference"
	jwtsvc "confbooking/internal/pkg/jwt"
	"confbooking/internal/pkg/logger"
	"confbooking/internal/repository"
)

func main() {
	withToken := flag.Bool("token", false, "print an admin token signed with JWT_SECRET")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	logger.Info("running migrations")
	if err := database.Migrate(db); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	roomRepo := repository.NewRoomRepository(db)
	resolver := reference.NewResolver(repository.NewReferenceRepository(db), roomRepo)

	existing, err := roomRepo.List(ctx)
	if err != nil {
		logger.Error("list rooms failed", "error", err)
		os.Exit(1)
	}
	if len(existing) == 0 {
		rooms := []reference.CreateRoomRequest{
			{Name: "Almaty Hall", Code: "A-1", Floor: "1", Capacity: 120, RatePerDay: 900},
			{Name: "Board Room", Code: "B-2", Floor: "2", Capacity: 14, RatePerDay: 250},
			{Name: "Workshop Studio", Code: "W-3", Floor: "3", Capacity: 40, RatePerDay: 400},
		}
		for _, req := range rooms {
			room, err := resolver.CreateRoom(ctx, req)
			if err != nil {
				logger.Error("create room failed", "name", req.Name, "error", err)
				os.Exit(1)
			}
			logger.Info("room created", "room_id", room.ID, "name", room.Name)
		}
	} else {
		logger.Info("rooms already seeded", "count", len(existing))
	}

	for _, name := range []string{"Conference", "Workshop", "Wedding", "Corporate Party", "Training"} {
		et, created, err := resolver.ResolveEventType(ctx, name)
		if err != nil {
			var verr *reference.ValidationError
			if errors.As(err, &verr) {
				logger.Warn("skipping event type", "name", name, "fields", verr.Fields)
				continue
			}
			logger.Error("resolve event type failed", "name", name, "error", err)
			os.Exit(1)
		}
		logger.Info("event type ready", "event_type_id", et.ID, "name", et.Name, "created", created)
	}

	if *withToken {
		token, err := jwtsvc.New(cfg.JWT.Secret, cfg.JWT.TTL).GenerateToken(1, string(domain.RoleAdmin))
		if err != nil {
			logger.Error("token issue failed", "error", err)
			os.Exit(1)
		}
		logger.Info("admin token issued", "token", token)
	}

	logger.Info("seed completed")
}
