// Command userforms-demo serves the account forms with a seeded
// administrator account.
//
// Configuration comes from the environment (a .env file in the working
// directory is loaded first):
//
//	USERFORMS_PORT           listen port (default 8080)
//	USERFORMS_STORE          fs, sqlite, postgres or datastore (default fs)
//	USERFORMS_STORAGE_PATH   fs store directory (default ./data)
//	USERFORMS_DSN            sqlite file or postgres DSN
//	USERFORMS_GCP_PROJECT    datastore project
//	USERFORMS_REDIS_ADDR     keep sessions in redis when set
//	USERFORMS_ADMIN_MAIL     seeded administrator (default admin@example.com)
//	USERFORMS_ADMIN_PASSWORD seeded administrator password (default admin123)
//
// plus the USERFORMS_* variables read by userforms.Config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	uf "github.com/panyam/userforms"
	"github.com/panyam/userforms/stores/fs"
	"github.com/panyam/userforms/stores/gae"
	gormstore "github.com/panyam/userforms/stores/gorm"
	redisstore "github.com/panyam/userforms/stores/redis"
)

func getEnv(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func openAccountStore(ctx context.Context) (uf.AccountStore, error) {
	switch kind := getEnv("USERFORMS_STORE", "fs"); kind {
	case "fs":
		return fs.NewFSAccountStore(getEnv("USERFORMS_STORAGE_PATH", "./data")), nil
	case "sqlite", "postgres":
		var dialector gorm.Dialector
		if kind == "sqlite" {
			dialector = sqlite.Open(getEnv("USERFORMS_DSN", "userforms.db"))
		} else {
			dsn := os.Getenv("USERFORMS_DSN")
			if dsn == "" {
				return nil, errors.New("USERFORMS_DSN is required for the postgres store")
			}
			dialector = postgres.Open(dsn)
		}
		db, err := gorm.Open(dialector, &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("error opening database: %w", err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("error migrating database: %w", err)
		}
		return gormstore.NewAccountStore(db), nil
	case "datastore":
		client, err := datastore.NewClient(ctx, os.Getenv("USERFORMS_GCP_PROJECT"))
		if err != nil {
			return nil, fmt.Errorf("error creating datastore client: %w", err)
		}
		return gae.NewAccountStore(client, os.Getenv("USERFORMS_DATASTORE_NAMESPACE")), nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

// seedAdmin creates the administrator account on first start.
func seedAdmin(ctx context.Context, accounts uf.AccountStore) error {
	mail := getEnv("USERFORMS_ADMIN_MAIL", "admin@example.com")
	if _, err := accounts.GetAccountByMail(ctx, mail); err == nil {
		return nil
	} else if !errors.Is(err, uf.ErrAccountNotFound) {
		return err
	}

	admin := &uf.Account{
		Name:        "admin",
		Mail:        mail,
		Active:      true,
		Permissions: []string{uf.PermAdministerUsers},
	}
	admin.SetPassword(getEnv("USERFORMS_ADMIN_PASSWORD", "admin123"))
	if err := admin.FinalizePassword(time.Now()); err != nil {
		return err
	}
	if err := accounts.CreateAccount(ctx, admin); err != nil {
		return err
	}
	log.Printf("Created administrator %s (id %d)", mail, admin.ID)
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded: ", err)
	}
	ctx := context.Background()

	accounts, err := openAccountStore(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if err := seedAdmin(ctx, accounts); err != nil {
		log.Fatalf("Error seeding administrator: %v", err)
	}

	session := scs.New()
	if addr := os.Getenv("USERFORMS_REDIS_ADDR"); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Error connecting to redis at %s: %v", addr, err)
		}
		session.Store = redisstore.NewSessionStore(rdb, "userforms")
	}

	module := uf.New(&uf.Config{}, session, accounts)
	module.EmailSender = &uf.ConsoleEmailSender{}

	port := getEnv("USERFORMS_PORT", "8080")
	log.Printf("Listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, module.Handler()))
}
