package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/auth"
	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/db"
	"github.com/hackgods/vet-appointment-scheduling/internal/logger"
)

// Fixture is written for cmd/simulate so it can act as seeded users.
type Fixture struct {
	Veterinarians []SeededUser `json:"veterinarians"`
	Owners        []SeededUser `json:"owners"`
}

type SeededUser struct {
	ID     uuid.UUID   `json:"id"`
	Token  string      `json:"token"`
	PetIDs []uuid.UUID `json:"petIds,omitempty"`
}

var species = []string{"dog", "cat", "rabbit", "bird", "ferret", "guinea pig"}

var specialties = []string{
	"General Practice",
	"Surgery",
	"Dermatology",
	"Dentistry",
	"Cardiology",
	"Exotics",
	"Internal Medicine",
}

// optional per-vet work days; the rest use the clinic default
var shifts = [][2]string{
	{"07:00", "15:00"},
	{"10:00", "18:00"},
	{"12:00", "20:00"},
}

func main() {
	vets := flag.Int("vets", 50, "veterinarians to create")
	owners := flag.Int("owners", 2000, "pet owners to create")
	out := flag.String("out", "seed.json", "fixture file for cmd/simulate")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of minted tokens")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg, "seed")
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireJWT(); err != nil {
		log.Fatal("config error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err == nil {
		err = db.Migrate(ctx, pool)
	}
	if err != nil {
		log.Fatal("postgres setup error", zap.Error(err))
	}
	defer pool.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	var fx Fixture

	fx.Veterinarians, err = seedVeterinarians(ctx, log, pool, verifier, *vets, *tokenTTL)
	if err != nil {
		log.Fatal("seed veterinarians", zap.Error(err))
	}
	fx.Owners, err = seedOwners(ctx, log, pool, verifier, *owners, *tokenTTL)
	if err != nil {
		log.Fatal("seed owners", zap.Error(err))
	}

	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		log.Fatal("encode fixture", zap.Error(err))
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		log.Fatal("write fixture", zap.Error(err))
	}

	log.Info("seed complete",
		zap.Int("approved_veterinarians", len(fx.Veterinarians)),
		zap.Int("owners", len(fx.Owners)),
		zap.String("fixture", *out),
	)
}

// seedVeterinarians creates count vets. About one in ten is left pending approval and is
// not written to the fixture.
func seedVeterinarians(ctx context.Context, log *zap.Logger, pool *pgxpool.Pool, v *auth.Verifier, count int, ttl time.Duration) ([]SeededUser, error) {
	log.Info("seeding veterinarians", zap.Int("count", count))

	var seeded []SeededUser
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			if err := insertUser(ctx, tx, id, auth.RoleVeterinarian); err != nil {
				return err
			}

			status := "approved"
			if gofakeit.Number(1, 10) == 1 {
				status = "pending"
			}
			var workStart, workEnd *string
			if gofakeit.Bool() {
				s := shifts[gofakeit.Number(0, len(shifts)-1)]
				workStart, workEnd = &s[0], &s[1]
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO veterinarians (user_id, specialty, status, work_start, work_end)
				VALUES ($1, $2, $3, $4, $5)
			`, id, gofakeit.RandomString(specialties), status, workStart, workEnd)
			if err != nil {
				return err
			}

			if status != "approved" {
				continue
			}
			token, err := v.Issue(auth.Identity{UserID: id, Role: auth.RoleVeterinarian}, ttl)
			if err != nil {
				return err
			}
			seeded = append(seeded, SeededUser{ID: id, Token: token})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("veterinarians seeded", zap.Int("approved", len(seeded)))
	return seeded, nil
}

func seedOwners(ctx context.Context, log *zap.Logger, pool *pgxpool.Pool, v *auth.Verifier, count int, ttl time.Duration) ([]SeededUser, error) {
	log.Info("seeding pet owners", zap.Int("count", count))

	const batchSize = 500

	seeded := make([]SeededUser, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				if err := insertUser(ctx, tx, id, auth.RolePetOwner); err != nil {
					return err
				}

				user := SeededUser{ID: id}
				for range gofakeit.Number(1, 3) {
					petID := uuid.New()
					_, err := tx.Exec(ctx, `
						INSERT INTO pets (id, owner_id, name, species)
						VALUES ($1, $2, $3, $4)
					`, petID, id, gofakeit.PetName(), gofakeit.RandomString(species))
					if err != nil {
						return err
					}
					user.PetIDs = append(user.PetIDs, petID)
				}

				token, err := v.Issue(auth.Identity{UserID: id, Role: auth.RolePetOwner}, ttl)
				if err != nil {
					return err
				}
				user.Token = token
				seeded = append(seeded, user)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		log.Info("pet owners seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return seeded, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, id uuid.UUID, role auth.Role) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
	`, id, gofakeit.Name(), gofakeit.Email(), string(role))
	return err
}
