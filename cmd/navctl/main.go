/*
Command navctl administers the profile store of a Group Navigation server.

	navctl create-admin -username root -email root@example.com -password ...
	navctl add-user -username alice -email alice@example.com [-lat 21.3 -lng -157.8]
	navctl set-password -username alice -password ...

The store is taken from -db, falling back to DATABASE_URL.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"groupnav/internal/app/profile"
	"groupnav/internal/app/user"
	"groupnav/internal/pkg/logx"
)

const defaultDSN = "instance/groupnav.db"

func main() {
	logx.InitGlobalLogger(logx.Options{Development: true, Level: "warn"})

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "navctl: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: navctl <create-admin|add-user|set-password> [flags]")

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	command, args := args[0], args[1:]
	flagSet := flag.NewFlagSet("navctl "+command, flag.ContinueOnError)
	flagSet.SetOutput(out)

	dsn := flagSet.String("db", envOrDefault("DATABASE_URL", defaultDSN), "sqlite path or postgres:// URL")
	username := flagSet.String("username", "", "login name")
	email := flagSet.String("email", "", "email address")
	password := flagSet.String("password", "", "password")
	fullName := flagSet.String("full-name", "", "display name")
	vehicle := flagSet.String("vehicle", "", "vehicle type")
	var lat, lng *float64
	flagSet.Func("lat", "initial latitude", floatFlag(&lat))
	flagSet.Func("lng", "initial longitude", floatFlag(&lng))

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("%s: -username is required", command)
	}

	store, err := profile.Open(ctx, *dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	gate := user.NewGate(store)

	switch command {
	case "create-admin", "add-user":
		if *email == "" {
			return fmt.Errorf("%s: -email is required", command)
		}
		if (lat == nil) != (lng == nil) {
			return fmt.Errorf("%s: -lat and -lng go together", command)
		}
		if err := user.ValidateUsername(*username); err != nil {
			return err
		}

		admin := command == "create-admin"
		if admin && *password == "" {
			return fmt.Errorf("%s: -password is required", command)
		}

		var hash string
		if *password != "" {
			if hash, err = gate.HashPassword(*password); err != nil {
				return err
			}
		}

		p, err := store.Create(ctx, profile.NewProfile{
			Username:     *username,
			Email:        *email,
			PasswordHash: hash,
			FullName:     *fullName,
			VehicleType:  *vehicle,
			IsAdmin:      admin,
			Latitude:     lat,
			Longitude:    lng,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created profile %d (%s)\n", p.ID, p.Username)
		return nil

	case "set-password":
		p, err := store.GetByUsername(ctx, *username)
		if err != nil {
			return err
		}
		if err := gate.SetPassword(ctx, p.ID, *password); err != nil {
			return err
		}
		fmt.Fprintf(out, "password updated for %s\n", p.Username)
		return nil

	default:
		return errUsage
	}
}

func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
