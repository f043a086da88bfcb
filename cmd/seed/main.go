// Command main runs the database seeder for Parley.
package main

import (
	"flag"
	"log"

	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 20, "Number of users to create")
	numConversations := flag.Int("conversations", 15, "Number of direct conversations to create")
	numRooms := flag.Int("rooms", 6, "Number of project rooms to create")
	maxDays := flag.Int("max-days", 90, "Spread account creation up to this many days back")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	fast := flag.Bool("fast", false, "Skip bcrypt hashing for faster seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d conversations, %d rooms, clean=%v\n",
		*numUsers, *numConversations, *numRooms, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.SeedOptions{
		NumUsers:         *numUsers,
		NumConversations: *numConversations,
		NumRooms:         *numRooms,
		MaxDays:          *maxDays,
		ShouldClean:      *shouldClean,
		DryRun:           *dryRun,
		SkipBcrypt:       *fast,
	}
	if err := seed.Run(db, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	// Re-establish the permanent rooms after a clean
	if !*dryRun {
		if err := seed.Rooms(db); err != nil {
			log.Fatalf("❌ Built-in room seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Println("📧 All seeded users have the password: Seed!Passw0rd123")
}
