// Command main runs the database seeder for Quill.
package main

import (
	"flag"
	"log"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/seed"
)

func main() {
	regular := flag.Int("users", 40, "Number of regular users to create")
	admins := flag.Int("admins", 5, "Number of admins to create")
	supers := flag.Int("super-admins", 2, "Number of super admins to create")
	pending := flag.Int("pending", 5, "Number of pending status change requests to file")
	fixtures := flag.String("fixtures", "", "YAML fixture file with named users to upsert")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Skip bcrypt for generated users (development only)")
	flag.Parse()

	log.Println("Database Seeder")
	log.Println("===============")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{SkipBcrypt: *fast})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if *fixtures != "" {
		f, err := seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
		created, err := seed.ApplyFixtures(db, f)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		log.Printf("Fixtures applied: %d created, %d total", created, len(f.Users))
	}

	users, err := s.Directory(seed.Counts{
		Regular:         *regular,
		Admins:          *admins,
		SuperAdmins:     *supers,
		PendingRequests: *pending,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeding complete: %d users", len(users))
}
