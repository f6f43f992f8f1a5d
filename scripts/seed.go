//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/pkg/config"
	"github.com/hugh/go-assess/pkg/crypto"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/joho/godotenv"
)

// Sample scan output so a fresh install can run an assessment immediately.
var sampleDocuments = []struct {
	name string
	kind models.DocumentKind
	body string
}{
	{"nmap.json", models.DocumentPortScan, `{"host": "198.51.100.24", "ports": [{"port": 22, "state": "open", "service": "ssh"}, {"port": 3389, "state": "open", "service": "ms-wbt-server"}]}`},
	{"dig_txt.json", models.DocumentDNS, `{"domain": "example.com", "TXT": ["v=spf1 include:_spf.example.com ~all"]}`},
	{"dig_dmarc.json", models.DocumentDNS, `{"domain": "_dmarc.example.com", "TXT": []}`},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, &cfg.Log)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := envOr("ADMIN_EMAIL", "owner@example.com")
	password := envOr("ADMIN_PASSWORD", "Owner#Pass123")
	name := envOr("ADMIN_NAME", "Owner")

	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:         email,
		Password:      password,
		Name:          name,
		OrgName:       "Example Corp",
		EmailDomain:   "example.com",
		WebsiteDomain: "www.example.com",
		ExternalIP:    "198.51.100.24",
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Owner already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create owner: %v", err)
	}
	owner := resp.User
	orgID := *owner.OrganizationID

	// An analyst who can read and triage risks but not export reports.
	if _, err := authService.Register(ctx, auth.RegisterInput{
		Email:    "analyst@example.com",
		Password: password,
		Name:     "Analyst",
	}); err != nil && !errors.Is(err, auth.ErrUserExists) {
		log.Fatalf("failed to create analyst: %v", err)
	}
	if _, err := authService.AddMember(ctx, orgID, auth.MemberInput{
		Email: "analyst@example.com",
		Capabilities: []models.Capability{
			models.CapViewRisk,
			models.CapResolveRisk,
			models.CapGenerateReport,
		},
	}); err != nil && !errors.Is(err, auth.ErrAlreadyAffiliated) {
		log.Fatalf("failed to add analyst: %v", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("failed to create encryptor: %v", err)
	}
	store, err := artifacts.New(ctx, cfg.Storage, encryptor)
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}

	for _, d := range sampleDocuments {
		key := artifacts.NewKey(orgID, d.name)
		if err := store.Save(ctx, key, []byte(d.body)); err != nil {
			log.Fatalf("failed to store %s: %v", d.name, err)
		}
		doc := models.SourceDocument{
			OrganizationID: orgID,
			UploadedBy:     owner.ID,
			Name:           d.name,
			Kind:           d.kind,
			StorageKey:     key,
			Size:           int64(len(d.body)),
		}
		if err := db.WithContext(ctx).Create(&doc).Error; err != nil {
			log.Fatalf("failed to record %s: %v", d.name, err)
		}
	}

	fmt.Printf("Seed data created successfully!\n")
	fmt.Printf("Owner: %s\n", owner.Email)
	fmt.Printf("Analyst: analyst@example.com\n")
	fmt.Printf("Organization: %s (%s)\n", "Example Corp", orgID)
	fmt.Printf("Documents: %d\n", len(sampleDocuments))
	fmt.Printf("Token: %s\n", resp.Token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
