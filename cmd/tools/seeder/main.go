package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joho/godotenv"

	"github.com/bazar-commerce/backend-bazar/internal/auth"
	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/config"
	"github.com/bazar-commerce/backend-bazar/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, "bazar-seeder")
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	seedUsers(ctx, auth.PGUserStore{Pool: pool})
	seedCatalog(ctx, &catalog.Store{Pool: pool})

	log.Println("seeding completed")
}

func seedUsers(ctx context.Context, users auth.PGUserStore) {
	accounts := []struct {
		Name     string
		Email    string
		Password string
	}{
		{"Demo Shopper", "shopper@bazar.dev", "shopper-pass-1"},
		{"Demo Admin", "admin@bazar.dev", "admin-pass-1"},
	}

	log.Println("seeding users...")
	for _, account := range accounts {
		hash, err := argon2id.CreateHash(account.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("hash password for %s: %v", account.Email, err)
		}
		if _, err := users.CreateUser(ctx, account.Name, account.Email, hash); err != nil {
			if isUniqueViolation(err) {
				log.Printf("user %s already exists, skipping", account.Email)
				continue
			}
			log.Fatalf("create user %s: %v", account.Email, err)
		}
		log.Printf("created user %s", account.Email)
	}
}

func seedCatalog(ctx context.Context, products *catalog.Store) {
	now := time.Now().UTC()

	items := []struct {
		Product  catalog.Product
		Reprice  int64
		Discount int
	}{
		{
			Product: catalog.Product{
				Title:       "Saffron 4.6g Pack",
				Slug:        "saffron-pack",
				WeightGrams: 25,
				ShowCount:   40,
				Prices:      catalog.PriceLog{}.Append(1_850_000, now.Add(-72*time.Hour)),
			},
			Reprice:  1_950_000,
			Discount: 10,
		},
		{
			Product: catalog.Product{
				Title:       "Ceramic Teapot",
				Slug:        "ceramic-teapot",
				WeightGrams: 900,
				ShowCount:   12,
				Prices:      catalog.PriceLog{}.Append(3_200_000, now.Add(-24*time.Hour)),
			},
		},
		{
			Product: catalog.Product{
				Title:       "Handwoven Kilim 90x60",
				Slug:        "kilim-90x60",
				WeightGrams: 1500,
				ShowCount:   5,
				Prices:      catalog.PriceLog{}.Append(18_500_000, now.Add(-240*time.Hour)),
			},
			Discount: 15,
		},
		{
			Product: catalog.Product{
				Title:       "Dried Figs 500g",
				Slug:        "dried-figs-500g",
				WeightGrams: 500,
				ShowCount:   80,
				Prices:      catalog.PriceLog{}.Append(1_100_000, now.Add(-6*time.Hour)),
			},
		},
	}

	log.Println("seeding catalog...")
	for _, item := range items {
		created, err := products.Create(ctx, item.Product)
		if err != nil {
			if isUniqueViolation(err) {
				log.Printf("product %s already exists, skipping", item.Product.Slug)
				continue
			}
			log.Fatalf("create product %s: %v", item.Product.Slug, err)
		}
		if item.Reprice > 0 {
			point := catalog.PricePoint{Price: item.Reprice, EffectiveAt: now}
			if err := products.AppendPrice(ctx, created.ID, point); err != nil {
				log.Fatalf("reprice product %s: %v", item.Product.Slug, err)
			}
		}
		if item.Discount > 0 {
			point := catalog.DiscountPoint{Percent: item.Discount, ExpiresAt: now.Add(7 * 24 * time.Hour)}
			if err := products.AppendDiscount(ctx, created.ID, point); err != nil {
				log.Fatalf("discount product %s: %v", item.Product.Slug, err)
			}
		}
		log.Printf("created product %s", item.Product.Slug)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
