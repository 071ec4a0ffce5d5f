// Command seed creates a login-capable user in the Tripmate database and,
// with --with, a conversation between that user and an existing one. It is
// meant for local development where no signup flow exists.
//
//	go run ./cmd/seed --email alice@example.com --password secret --name Alice
//	go run ./cmd/seed --email bob@example.com --password secret --with alice@example.com
//
// TRIPMATE_DB_DRIVER and TRIPMATE_DB_DSN select the database, as for the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate-io/tripmate/internal/auth"
	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/repositories"
)

type options struct {
	email    string
	password string
	name     string
	with     string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.email, "email", "", "email of the new user")
	flag.StringVar(&opts.password, "password", "", "password of the new user")
	flag.StringVar(&opts.name, "name", "Traveller", "display name")
	flag.StringVar(&opts.with, "with", "", "email of an existing user to open a conversation with")
	flag.Parse()

	if err := seed(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, opts options) error {
	if opts.email == "" || opts.password == "" {
		return errors.New("--email and --password are both required")
	}

	gdb, err := db.New(db.Config{
		Driver:   envOrDefault("TRIPMATE_DB_DRIVER", "sqlite"),
		DSN:      envOrDefault("TRIPMATE_DB_DSN", "./tripmate.db"),
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		return err
	}
	defer db.Close(gdb) //nolint:errcheck

	users := repositories.NewUserRepository(gdb)

	var peer *db.User
	if opts.with != "" {
		if peer, err = users.GetByEmail(ctx, opts.with); err != nil {
			return fmt.Errorf("looking up %s: %w", opts.with, err)
		}
	}

	hashed, err := auth.HashPassword(opts.password)
	if err != nil {
		return err
	}
	user := &db.User{Email: opts.email, DisplayName: opts.name, Password: hashed, IsActive: true}
	switch err := users.Create(ctx, user); {
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%s is already registered", opts.email)
	case err != nil:
		return err
	}
	fmt.Printf("user     %s  %s (%s)\n", user.ID, user.Email, user.DisplayName)

	if peer == nil {
		return nil
	}

	conv := &db.Conversation{Title: user.DisplayName + " & " + peer.DisplayName}
	conversations := repositories.NewConversationRepository(gdb)
	if err := conversations.Create(ctx, conv, []uuid.UUID{user.ID, peer.ID}); err != nil {
		return err
	}
	fmt.Printf("chat     %d  with %s\n", conv.ID, peer.Email)
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
